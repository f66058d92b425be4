package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agile_story_evaluator/config"
	"agile_story_evaluator/critique"
	"agile_story_evaluator/logging"
	"agile_story_evaluator/service"
)

var (
	configPath string
	verbose    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storyeval",
		Short:         "Score Agile user stories against the INVEST criteria",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")

	root.AddCommand(newServeCmd(), newEvaluateCmd(), newSamplesCmd())
	return root
}

// setup loads configuration and builds the logger every subcommand shares.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Logger.Level = "debug"
	}
	logger, err := logging.NewStderr(cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// buildCritic returns nil when no credential is configured; the service then
// runs in heuristic-only mode.
func buildCritic(cfg config.LLMConfig, logger *zap.Logger) (service.Critiquer, error) {
	if !cfg.AIEnabled() {
		logger.Info("no llm api key found, ai analysis disabled", zap.String("env", cfg.APIKeyEnv))
		return nil, nil
	}
	llm, err := critique.NewLLM(cfg.Settings())
	if errors.Is(err, critique.ErrNoCredential) {
		logger.Info("no llm api key found, ai analysis disabled", zap.String("env", cfg.APIKeyEnv))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	critic, err := critique.NewCritic(llm, cfg.Options(), logger.Named("critique"))
	if err != nil {
		return nil, err
	}
	logger.Info("ai analysis enabled", zap.String("provider", cfg.Provider), zap.String("model", cfg.Model))
	return critic, nil
}
