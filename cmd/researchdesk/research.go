package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researchdesk/internal/agent/core"
	"github.com/mohammad-safakhou/researchdesk/internal/export"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func researchCmd(cfgPath *string) *cobra.Command {
	var (
		domain string
		agents []string
		format string
	)
	cmd := &cobra.Command{
		Use:   "research <query>",
		Short: "Run one research request and print the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "markdown" {
				return fmt.Errorf("unknown format %q (json or markdown)", format)
			}
			ctx := cmd.Context()
			a, err := loadApp(ctx, *cfgPath, true)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				a.close(shutdownCtx)
			}()

			d := core.ParseDomain(domain)
			ids := agents
			if len(ids) == 0 {
				ids = core.DefaultAgents(d)
			}
			res := a.orchestrator.Execute(ctx, core.Request{Query: strings.Join(args, " "), Domain: d, AgentIDs: ids})
			if a.history != nil && len(res.AgentResults) > 0 {
				if err := a.history.Save(ctx, res); err != nil {
					a.logger.Warn("save report failed", zap.Error(err))
				}
			}
			if err := writeReport(cmd.OutOrStdout(), res, format); err != nil {
				return err
			}
			if res.Error != "" {
				return fmt.Errorf("research: %s", res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&domain, "domain", "d", string(core.DomainGeneral), "research domain (stocks, medical, academic, technology, general)")
	cmd.Flags().StringSliceVarP(&agents, "agents", "a", nil, "agents to run (default depends on domain)")
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "output format: json or markdown")
	return cmd
}

func writeReport(w io.Writer, res core.WorkflowResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err := io.WriteString(w, export.Markdown(res))
	return err
}
