package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"agile_story_evaluator/invest"
	"agile_story_evaluator/logging"
	"agile_story_evaluator/service"
)

// storyFile is the batch format read by evaluate --file.
type storyFile struct {
	Stories []invest.Sample `yaml:"stories"`
}

func loadStoryFile(path string) ([]invest.Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stories: %w", err)
	}
	var f storyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse stories %s: %w", path, err)
	}
	if len(f.Stories) == 0 {
		return nil, fmt.Errorf("%s contains no stories", path)
	}
	return f.Stories, nil
}

func newEvaluateCmd() *cobra.Command {
	var (
		file   string
		withAI bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "evaluate [story...]",
		Short: "Evaluate stories given as arguments, in a YAML file, or on stdin (-)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stories, err := collectStories(args, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logging.Sync(logger)

			var critic service.Critiquer
			if withAI {
				if critic, err = buildCritic(cfg.LLM, logger); err != nil {
					return err
				}
			}
			svc := service.New(nil, critic, logger.Named("service"))

			reports := make([]invest.EvaluationReport, 0, len(stories))
			for _, s := range stories {
				out := svc.Evaluate(cmd.Context(), service.Request{Story: s.Story})
				reports = append(reports, *out.Report)
			}
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}
			for i, r := range reports {
				if i > 0 {
					fmt.Fprintln(w)
				}
				printReport(w, stories[i].Title, r)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a stories list")
	cmd.Flags().BoolVar(&withAI, "ai", false, "request an AI critique (needs an API key)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print reports as JSON")
	return cmd
}

func collectStories(args []string, file string, stdin io.Reader) ([]invest.Sample, error) {
	var stories []invest.Sample
	if file != "" {
		loaded, err := loadStoryFile(file)
		if err != nil {
			return nil, err
		}
		stories = append(stories, loaded...)
	}
	for _, a := range args {
		if a == "-" {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return nil, fmt.Errorf("read stdin: %w", err)
			}
			a = strings.TrimSpace(string(data))
		}
		stories = append(stories, invest.Sample{Story: a})
	}
	if len(stories) == 0 {
		return nil, errors.New("provide a story, --file, or - for stdin")
	}
	return stories, nil
}

func newSamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "samples",
		Short: "Evaluate the built-in sample stories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			for i, s := range invest.Samples {
				if i > 0 {
					fmt.Fprintln(w)
				}
				printReport(w, s.Title, invest.Evaluate(s.Story))
			}
			return nil
		},
	}
}
