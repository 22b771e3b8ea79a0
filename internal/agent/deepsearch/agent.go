package deepsearch

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/researchdesk/internal/agent/core"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchdesk/internal/helpers"
	"go.uber.org/zap"
)

const citationConfidence = 4.5

// Searcher is the deep search collaborator.
type Searcher interface {
	Search(ctx context.Context, query string, domain core.Domain) (*Result, error)
}

// Agent adapts a Searcher to core.Agent.
type Agent struct {
	searcher Searcher
	setupErr error
	logger   *zap.Logger
}

// NewAgent wraps searcher. A nil searcher with setupErr set yields an agent
// that reports setupErr on every run, so a missing credential only fails
// this agent.
func NewAgent(searcher Searcher, setupErr error, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{searcher: searcher, setupErr: setupErr, logger: logger.Named("deepsearch")}
}

func (a *Agent) Name() string { return core.AgentDeepSearch }

func (a *Agent) Execute(ctx context.Context, query string, domain core.Domain) core.AgentResult {
	if a.searcher == nil {
		err := a.setupErr
		if err == nil {
			err = ErrMissingAPIKey
		}
		return core.Failed(a.Name(), err.Error())
	}

	sw := telemetry.StartStopwatch()
	a.logger.Debug("searching", zap.String("query", query), zap.String("domain", string(domain)))

	res, err := a.searcher.Search(ctx, query, domain)
	if err != nil {
		a.logger.Warn("search failed", zap.Error(err))
		return core.Failed(a.Name(), err.Error())
	}

	report := core.AgentReport{
		Sources:  citationSources(res),
		Summary:  helpers.CleanText(res.Sections.Summary),
		Findings: helpers.CleanList(res.Sections.Findings),
		Insights: helpers.CleanList(res.Sections.Insights),
		Cost:     res.Cost,
		Tokens:   res.TokensUsed,
		Metadata: map[string]any{
			core.MetaExecutionTime: sw.Seconds(),
			"model":                res.Model,
			"citation_count":       len(res.Citations),
			"domain":               string(domain),
		},
	}
	a.logger.Info("search complete",
		zap.Int("sources", len(report.Sources)),
		zap.Int("tokens", report.Tokens),
		zap.Float64("cost_usd", report.Cost),
	)
	return core.Succeeded(a.Name(), report)
}

func citationSources(res *Result) []core.Source {
	date := res.Created.Format("2006-01-02")
	out := make([]core.Source, 0, len(res.Citations))
	for i, c := range res.Citations {
		title := helpers.CleanText(c.Title)
		if title == "" {
			title = fmt.Sprintf("Source %d", i+1)
		}
		summary := helpers.CleanText(c.Snippet)
		if summary == "" {
			summary = "No description"
		}
		typ := core.SourceType(strings.ToLower(strings.TrimSpace(c.Type)))
		if typ == "" {
			typ = core.SourceWeb
		}
		published := date
		if len(c.Date) >= 10 {
			published = c.Date[:10]
		}
		out = append(out, core.NewSource(title, c.URL, summary, citationConfidence, published, typ))
	}
	return out
}
