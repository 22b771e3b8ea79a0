package core

import (
	"fmt"

	"github.com/mohammad-safakhou/researchdesk/internal/helpers"
)

const (
	maxKeyFindings = 10
	maxInsights    = 8
)

// Consolidated holds the merged report fields.
type Consolidated struct {
	Summary      string
	KeyFindings  []string
	Insights     []string
	TotalSources int
	TotalCost    float64
	TotalTokens  int
	Succeeded    int
}

// Consolidate merges agent results given in dispatch order. Failed results
// contribute nothing.
func Consolidate(results []AgentResult) Consolidated {
	var (
		out          Consolidated
		findings     []string
		insights     []string
		deepSummary  string
		firstSummary string
	)
	for _, r := range results {
		if !r.OK() {
			continue
		}
		out.Succeeded++
		out.TotalSources += len(r.Sources())
		out.TotalCost += r.Cost()
		out.TotalTokens += r.Tokens()
		findings = append(findings, r.Findings()...)
		insights = append(insights, r.Insights()...)

		summary := helpers.CleanText(r.Summary())
		if summary == "" {
			continue
		}
		if CanonicalID(r.AgentName()) == AgentDeepSearch && deepSummary == "" {
			deepSummary = summary
		}
		if firstSummary == "" {
			firstSummary = summary
		}
	}

	out.KeyFindings = truncate(uniqueOrdered(findings), maxKeyFindings)
	out.Insights = truncate(uniqueOrdered(insights), maxInsights)

	switch {
	case deepSummary != "":
		out.Summary = deepSummary
	case firstSummary != "":
		out.Summary = firstSummary
	default:
		out.Summary = FallbackSummary(out.Succeeded, out.TotalSources)
	}
	return out
}

// FallbackSummary is used when no agent supplied a summary.
func FallbackSummary(agents, sources int) string {
	return fmt.Sprintf("Research completed using %d specialized agents. Collected %d sources from multiple channels.", agents, sources)
}

func uniqueOrdered(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

func truncate(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
