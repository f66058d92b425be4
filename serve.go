package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agile_story_evaluator/guard"
	"agile_story_evaluator/logging"
	"agile_story_evaluator/server"
	"agile_story_evaluator/service"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web evaluator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logging.Sync(logger)
			if addr != "" {
				cfg.Server.Addr = addr
			}

			g, err := guard.New(cfg.Guard.Guard())
			if err != nil {
				return err
			}
			critic, err := buildCritic(cfg.LLM, logger)
			if err != nil {
				return err
			}
			svc := service.New(g, critic, logger.Named("service"))
			srv, err := server.New(svc, server.Options{TrustProxy: cfg.Server.TrustProxy}, logger.Named("server"))
			if err != nil {
				return err
			}

			httpSrv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           srv.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("starting web server", zap.String("addr", cfg.Server.Addr))
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
