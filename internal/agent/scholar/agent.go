// Package scholar is the academicnews agent: papers from arXiv plus current
// articles from NewsAPI.
package scholar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researchdesk/config"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/core"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchdesk/internal/helpers"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxFindings = 10

// Backend is one searchable catalogue.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string) ([]core.Source, error)
}

// Agent fans a query out to its backends and merges the results.
type Agent struct {
	backends []Backend
	timeout  time.Duration
	logger   *zap.Logger
}

// New builds the agent from configuration. NewsAPI is only queried when a key
// is configured.
func New(cfg config.ScholarConfig, logger *zap.Logger) *Agent {
	http := core.NewHTTPClient(cfg.Timeout, "")
	backends := []Backend{NewArxivBackend(http, cfg.ArxivEndpoint, cfg.ArxivMaxResults, cfg.ArxivInterval)}
	if news := NewNewsBackend(http, cfg.NewsAPIKey, cfg.NewsEndpoint, cfg.NewsMaxResults); news != nil {
		backends = append(backends, news)
	}
	a := NewAgent(logger, backends...)
	a.timeout = cfg.Timeout
	return a
}

func NewAgent(logger *zap.Logger, backends ...Backend) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{backends: backends, logger: logger.Named("academicnews")}
}

func (a *Agent) Name() string { return core.AgentAcademicNews }

func (a *Agent) Execute(ctx context.Context, query string, domain core.Domain) core.AgentResult {
	if len(a.backends) == 0 {
		return core.Failed(a.Name(), "no academic or news backends configured")
	}
	sw := telemetry.StartStopwatch()
	if a.timeout > 0 {
		// covers the arXiv pacing wait as well as the request itself
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	results := make([][]core.Source, len(a.backends))
	errs := make([]error, len(a.backends))
	var g errgroup.Group
	for i, b := range a.backends {
		g.Go(func() error {
			srcs, err := b.Search(ctx, query)
			if err != nil {
				a.logger.Warn("backend failed", zap.String("backend", b.Name()), zap.Error(err))
				errs[i] = err
				return nil
			}
			a.logger.Debug("backend complete", zap.String("backend", b.Name()), zap.Int("items", len(srcs)))
			results[i] = srcs
			return nil
		})
	}
	_ = g.Wait()

	var all []core.Source
	for _, r := range results {
		all = append(all, r...)
	}
	sources := core.DeduplicateSources(all)
	if len(sources) == 0 {
		var msgs []string
		for i, err := range errs {
			if err != nil {
				msgs = append(msgs, a.backends[i].Name()+": "+err.Error())
			}
		}
		if len(msgs) > 0 {
			return core.Failed(a.Name(), strings.Join(msgs, "; "))
		}
		return core.Failed(a.Name(), "no academic or news results")
	}

	report := summarize(sources)
	report.Metadata = map[string]any{
		core.MetaExecutionTime: sw.Seconds(),
		"domain":               string(domain),
	}
	return core.Succeeded(a.Name(), report)
}

func summarize(sources []core.Source) core.AgentReport {
	var findings []string
	var academic, news int
	for i, s := range sources {
		s.Title = helpers.CleanText(s.Title)
		if s.Title == "" {
			s.Title = "Untitled"
		}
		s.Summary = helpers.CleanText(s.Summary)
		sources[i] = s

		switch s.Type {
		case core.SourceAcademic:
			academic++
			if s.Summary != "" {
				findings = append(findings, "Academic: "+s.Title)
			}
		case core.SourceNews:
			news++
			if s.Summary != "" {
				findings = append(findings, "News: "+s.Title)
			}
		}
	}
	findings = helpers.CleanList(findings)
	if len(findings) > maxFindings {
		findings = findings[:maxFindings]
	}

	var insights []string
	if academic > 0 {
		insights = append(insights, fmt.Sprintf("Found %d peer-reviewed academic sources", academic))
	}
	if news > 0 {
		insights = append(insights, fmt.Sprintf("Collected %d current news articles", news))
	}
	insights = append(insights, "Multiple sources provide comprehensive coverage")

	return core.AgentReport{
		Sources:  sources,
		Summary:  helpers.CleanText(fmt.Sprintf("Retrieved %d sources: %d academic papers and %d news articles.", len(sources), academic, news)),
		Findings: findings,
		Insights: helpers.CleanList(insights),
	}
}
