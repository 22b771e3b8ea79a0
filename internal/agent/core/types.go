package core

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Domain steers which agents run and which prompts they use.
type Domain string

const (
	DomainStocks     Domain = "stocks"
	DomainMedical    Domain = "medical"
	DomainAcademic   Domain = "academic"
	DomainTechnology Domain = "technology"
	DomainGeneral    Domain = "general"
)

// Domains lists every supported domain.
var Domains = []Domain{DomainStocks, DomainMedical, DomainAcademic, DomainTechnology, DomainGeneral}

// ParseDomain maps free-form input onto a known domain. Unknown values map to
// DomainGeneral.
func ParseDomain(s string) Domain {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Domains {
		if d == known {
			return d
		}
	}
	return DomainGeneral
}

// SourceType classifies a Source.
type SourceType string

const (
	SourceAcademic SourceType = "academic"
	SourceNews     SourceType = "news"
	SourceWeb      SourceType = "web"
	SourceVideo    SourceType = "video"
)

// Source is one citable item surfaced by an agent.
type Source struct {
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	Summary       string     `json:"summary"`
	Confidence    float64    `json:"confidence"`
	PublishedDate string     `json:"date,omitempty"`
	Type          SourceType `json:"type,omitempty"`
}

// NewSource builds a Source, trimming the URL and clamping confidence to [0,5].
func NewSource(title, url, summary string, confidence float64, published string, typ SourceType) Source {
	switch {
	case confidence < 0:
		confidence = 0
	case confidence > 5:
		confidence = 5
	}
	return Source{
		Title:         title,
		URL:           strings.TrimSpace(url),
		Summary:       summary,
		Confidence:    confidence,
		PublishedDate: strings.TrimSpace(published),
		Type:          typ,
	}
}

// AgentReport is the payload of a successful agent run.
type AgentReport struct {
	Sources  []Source
	Summary  string
	Findings []string
	Insights []string
	Cost     float64
	Tokens   int
	// Metadata carries adapter specific details such as per-agent timing
	// under MetaExecutionTime. It is passed through to callers untouched.
	Metadata map[string]any
}

// MetaExecutionTime is the metadata key adapters use for their own wall time
// in seconds.
const MetaExecutionTime = "execution_time"

// AgentResult is the outcome of one agent invocation. It holds either a
// report or a failure reason, never both. Use Succeeded or Failed to build one.
type AgentResult struct {
	name   string
	report AgentReport
	reason string
	failed bool
}

// Succeeded wraps a report produced by the named agent.
func Succeeded(name string, report AgentReport) AgentResult {
	if report.Cost < 0 {
		report.Cost = 0
	}
	if report.Tokens < 0 {
		report.Tokens = 0
	}
	return AgentResult{name: name, report: report}
}

// Failed records that the named agent could not produce a report.
func Failed(name, reason string) AgentResult {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown error"
	}
	return AgentResult{name: name, reason: reason, failed: true}
}

func (r AgentResult) AgentName() string { return r.name }

// OK reports whether the agent produced a report.
func (r AgentResult) OK() bool { return !r.failed }

// Err returns the failure reason, or "" for a successful result.
func (r AgentResult) Err() string { return r.reason }

// Report returns the report and true for successful results.
func (r AgentResult) Report() (AgentReport, bool) {
	if r.failed {
		return AgentReport{}, false
	}
	return r.report, true
}

func (r AgentResult) Sources() []Source  { return r.report.Sources }
func (r AgentResult) Summary() string    { return r.report.Summary }
func (r AgentResult) Findings() []string { return r.report.Findings }
func (r AgentResult) Insights() []string { return r.report.Insights }
func (r AgentResult) Cost() float64      { return r.report.Cost }
func (r AgentResult) Tokens() int        { return r.report.Tokens }

// ExecutionTime returns the adapter reported wall time in seconds, or 0.
func (r AgentResult) ExecutionTime() float64 {
	switch v := r.report.Metadata[MetaExecutionTime].(type) {
	case float64:
		return v
	case time.Duration:
		return v.Seconds()
	case int:
		return float64(v)
	}
	return 0
}

type agentResultJSON struct {
	AgentName     string         `json:"agent_name"`
	Sources       []Source       `json:"sources"`
	Summary       string         `json:"summary,omitempty"`
	Findings      []string       `json:"findings"`
	Insights      []string       `json:"insights"`
	Cost          float64        `json:"cost"`
	Tokens        int            `json:"tokens"`
	ExecutionTime float64        `json:"execution_time,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Error         string         `json:"error,omitempty"`
}

func (r AgentResult) MarshalJSON() ([]byte, error) {
	out := agentResultJSON{
		AgentName: r.name,
		Sources:   r.report.Sources,
		Findings:  r.report.Findings,
		Insights:  r.report.Insights,
		Error:     r.reason,
	}
	if !r.failed {
		out.Summary = r.report.Summary
		out.Cost = r.report.Cost
		out.Tokens = r.report.Tokens
		out.ExecutionTime = r.ExecutionTime()
		out.Metadata = r.report.Metadata
	}
	if out.Sources == nil {
		out.Sources = []Source{}
	}
	if out.Findings == nil {
		out.Findings = []string{}
	}
	if out.Insights == nil {
		out.Insights = []string{}
	}
	return json.Marshal(out)
}

func (r *AgentResult) UnmarshalJSON(data []byte) error {
	var in agentResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Error != "" {
		*r = Failed(in.AgentName, in.Error)
		return nil
	}
	meta := in.Metadata
	if in.ExecutionTime > 0 {
		if meta == nil {
			meta = map[string]any{}
		}
		meta[MetaExecutionTime] = in.ExecutionTime
	}
	*r = Succeeded(in.AgentName, AgentReport{
		Sources:  in.Sources,
		Summary:  in.Summary,
		Findings: in.Findings,
		Insights: in.Insights,
		Cost:     in.Cost,
		Tokens:   in.Tokens,
		Metadata: meta,
	})
	return nil
}

// Request is one research request.
type Request struct {
	Query    string   `json:"query"`
	Domain   Domain   `json:"domain"`
	AgentIDs []string `json:"agents"`
}

// WorkflowResult is the consolidated report of one Execute call.
type WorkflowResult struct {
	RunID         string        `json:"run_id"`
	Query         string        `json:"query"`
	Domain        Domain        `json:"domain"`
	Timestamp     time.Time     `json:"timestamp"`
	Summary       string        `json:"summary"`
	KeyFindings   []string      `json:"key_findings"`
	Insights      []string      `json:"insights"`
	AgentResults  []AgentResult `json:"agent_results"`
	TotalSources  int           `json:"total_sources"`
	TotalCost     float64       `json:"total_cost"`
	TotalTokens   int           `json:"total_tokens"`
	ExecutionTime float64       `json:"execution_time"`
	Error         string        `json:"error,omitempty"`
}

// Sources returns the sources of every successful agent in dispatch order.
func (w WorkflowResult) Sources() []Source {
	var out []Source
	for _, r := range w.AgentResults {
		if r.OK() {
			out = append(out, r.Sources()...)
		}
	}
	return out
}

// Agent wraps one external research collaborator. Execute never returns an
// error: failures are reported through Failed.
type Agent interface {
	// Name is the registry id of the agent.
	Name() string
	Execute(ctx context.Context, query string, domain Domain) AgentResult
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc struct {
	ID string
	Fn func(ctx context.Context, query string, domain Domain) AgentResult
}

func (a AgentFunc) Name() string { return a.ID }

func (a AgentFunc) Execute(ctx context.Context, query string, domain Domain) AgentResult {
	return a.Fn(ctx, query, domain)
}
