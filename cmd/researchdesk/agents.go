package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mohammad-safakhou/researchdesk/internal/agent/core"
	"github.com/spf13/cobra"
)

func agentsCmd() *cobra.Command {
	var domain string
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List agents with cost and time estimates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printAgents(cmd.OutOrStdout(), core.ParseDomain(domain))
		},
	}
	cmd.Flags().StringVarP(&domain, "domain", "d", string(core.DomainGeneral), "domain whose defaults are marked")
	return cmd
}

// catalogue lists every known agent; no credentials are needed for this.
var catalogue = []string{core.AgentDeepSearch, core.AgentVideo, core.AgentAcademicNews}

func printAgents(w io.Writer, domain core.Domain) error {
	defaults := map[string]bool{}
	for _, id := range core.DefaultAgents(domain) {
		defaults[id] = true
	}
	agents := make([]core.Agent, 0, len(catalogue))
	for _, id := range catalogue {
		agents = append(agents, core.AgentFunc{ID: id})
	}
	reg, err := core.NewRegistry(agents...)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEST. COST\tEST. TIME\tDEFAULT")
	for _, d := range reg.Descriptors() {
		mark := ""
		if defaults[d.ID] {
			mark = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t$%.3f\t%.0fs\t%s\n", d.ID, d.DisplayName, d.EstimatedCost, d.EstimatedTime, mark)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	cost, secs := core.Estimate(core.DefaultAgents(domain))
	_, err = fmt.Fprintf(w, "\nDefaults for %s: %s (about $%.3f, %.0fs)\n", domain, strings.Join(core.DefaultAgents(domain), ", "), cost, secs)
	return err
}
