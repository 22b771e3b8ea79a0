package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/mohammad-safakhou/researchdesk/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd(cfgPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx, *cfgPath, true)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				a.close(shutdownCtx)
			}()
			a.telemetry.StartReporting(ctx, a.cfg.Workflow.ReportInterval)

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			deps := server.Deps{
				Researcher: a.orchestrator,
				Registry:   a.registry,
				Telemetry:  a.telemetry,
				Gatherer:   a.promRegistry,
				Logger:     a.logger,
			}
			if a.history != nil {
				deps.History = a.history
			}
			return server.Run(ctx, server.New(a.cfg.Server, deps), addr, a.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}
