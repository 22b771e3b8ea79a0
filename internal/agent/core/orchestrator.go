package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var orchestratorTracer = otel.Tracer("researchdesk/internal/agent/orchestrator")

// Result-level error messages.
const (
	ErrQueryRequired    = "query is required"
	ErrNoAgentsSelected = "no agents selected"
	ErrAllAgentsFailed  = "all agents failed"
	timeoutReason       = "timeout"
)

// Orchestrator runs the selected agents for a request and consolidates their
// results into one WorkflowResult.
type Orchestrator struct {
	registry        *Registry
	logger          *zap.Logger
	telemetry       *telemetry.Telemetry
	dispatchTimeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDispatchTimeout bounds every agent invocation. An agent still running
// at the deadline is reported as failed with reason "timeout". Zero disables
// the bound.
func WithDispatchTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.dispatchTimeout = d }
}

// WithTelemetry records agent and workflow outcomes into t.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(o *Orchestrator) { o.telemetry = t }
}

func NewOrchestrator(registry *Registry, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{registry: registry, logger: logger.Named("orchestrator")}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry returns the agent table the orchestrator dispatches from.
func (o *Orchestrator) Registry() *Registry { return o.registry }

type task struct {
	id    string
	agent Agent
}

// Execute runs one research request. It never returns an error: invalid
// requests and failed agents are reported inside the result.
func (o *Orchestrator) Execute(ctx context.Context, req Request) WorkflowResult {
	sw := telemetry.StartStopwatch()
	result := WorkflowResult{
		RunID:        uuid.NewString(),
		Query:        strings.TrimSpace(req.Query),
		Domain:       ParseDomain(string(req.Domain)),
		Timestamp:    sw.Started().UTC(),
		KeyFindings:  []string{},
		Insights:     []string{},
		AgentResults: []AgentResult{},
	}

	ctx, span := orchestratorTracer.Start(ctx, "workflow.execute",
		trace.WithAttributes(
			attribute.String("run.id", result.RunID),
			attribute.String("research.domain", string(result.Domain)),
			attribute.StringSlice("research.agents", req.AgentIDs),
		))
	defer span.End()

	logger := o.logger.With(zap.String("run_id", result.RunID))

	var tasks []task
	switch {
	case result.Query == "":
		result.Error = ErrQueryRequired
	default:
		tasks = o.plan(req.AgentIDs)
		if len(tasks) == 0 {
			result.Error = ErrNoAgentsSelected
		}
	}
	if result.Error != "" {
		result.Summary = FallbackSummary(0, 0)
		result.ExecutionTime = sw.Stop().Seconds()
		span.SetStatus(codes.Error, result.Error)
		logger.Warn("request rejected", zap.String("error", result.Error))
		o.recordWorkflow(ctx, result, sw.Elapsed())
		return result
	}

	logger.Info("dispatching agents",
		zap.String("query", result.Query),
		zap.String("domain", string(result.Domain)),
		zap.Int("agents", len(tasks)),
	)

	result.AgentResults = o.dispatch(ctx, result.RunID, result.Query, result.Domain, tasks)

	c := Consolidate(result.AgentResults)
	result.Summary = c.Summary
	result.KeyFindings = c.KeyFindings
	result.Insights = c.Insights
	result.TotalSources = c.TotalSources
	result.TotalCost = c.TotalCost
	result.TotalTokens = c.TotalTokens
	if c.Succeeded == 0 {
		result.Error = ErrAllAgentsFailed
		span.SetStatus(codes.Error, result.Error)
	}

	result.ExecutionTime = sw.Stop().Seconds()
	span.SetAttributes(
		attribute.Int("workflow.sources", result.TotalSources),
		attribute.Float64("workflow.cost_usd", result.TotalCost),
		attribute.Int("workflow.tokens", result.TotalTokens),
	)
	o.recordWorkflow(ctx, result, sw.Elapsed())
	return result
}

// Dispatch runs the agents named by ids concurrently and returns their
// results in request order. Unknown ids are skipped.
func (o *Orchestrator) Dispatch(ctx context.Context, query string, domain Domain, ids []string) []AgentResult {
	return o.dispatch(ctx, "", query, domain, o.plan(ids))
}

func (o *Orchestrator) plan(ids []string) []task {
	var tasks []task
	seen := make(map[string]bool, len(ids))
	for _, raw := range ids {
		id := CanonicalID(raw)
		agent, ok := o.registry.Lookup(id)
		if !ok {
			o.logger.Debug("skipping unknown agent", zap.String("agent", raw))
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		tasks = append(tasks, task{id: id, agent: agent})
	}
	return tasks
}

func (o *Orchestrator) dispatch(ctx context.Context, runID, query string, domain Domain, tasks []task) []AgentResult {
	results := make([]AgentResult, len(tasks))
	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t task) {
			defer wg.Done()

			agentCtx, span := orchestratorTracer.Start(ctx, "agent.execute",
				trace.WithAttributes(attribute.String("agent.id", t.id)))
			defer span.End()

			sw := telemetry.StartStopwatch()
			res := o.runWithTimeout(agentCtx, t, query, domain)
			elapsed := sw.Stop()
			if res.name == "" {
				res.name = t.id
			}
			results[i] = res

			span.SetAttributes(
				attribute.Bool("agent.success", res.OK()),
				attribute.Int("agent.sources", len(res.Sources())),
				attribute.Float64("agent.cost_usd", res.Cost()),
				attribute.Int("agent.tokens", res.Tokens()),
			)
			if !res.OK() {
				span.SetStatus(codes.Error, res.Err())
			}
			o.recordAgent(ctx, runID, t.id, res, elapsed)
		}(i, t)
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) runWithTimeout(ctx context.Context, t task, query string, domain Domain) AgentResult {
	if o.dispatchTimeout <= 0 {
		return o.runAgent(ctx, t, query, domain)
	}

	tctx, cancel := context.WithTimeout(ctx, o.dispatchTimeout)
	defer cancel()

	done := make(chan AgentResult, 1)
	go func() { done <- o.runAgent(tctx, t, query, domain) }()

	select {
	case res := <-done:
		return res
	case <-tctx.Done():
		if ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return Failed(t.id, timeoutReason)
		}
		return Failed(t.id, tctx.Err().Error())
	}
}

// runAgent turns a panic escaping the adapter into a failed result.
func (o *Orchestrator) runAgent(ctx context.Context, t task, query string, domain Domain) (res AgentResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("agent panicked",
				zap.String("agent", t.id),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			res = Failed(t.id, fmt.Sprintf("%s failed: %v", t.id, r))
		}
	}()
	return t.agent.Execute(ctx, query, domain)
}

func (o *Orchestrator) recordAgent(ctx context.Context, runID, id string, res AgentResult, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("run_id", runID),
		zap.String("agent", id),
		zap.Duration("duration", elapsed),
	}
	if res.OK() {
		o.logger.Info("agent finished", append(fields,
			zap.Int("sources", len(res.Sources())),
			zap.Float64("cost_usd", res.Cost()),
			zap.Int("tokens", res.Tokens()),
		)...)
	} else {
		o.logger.Warn("agent failed", append(fields, zap.String("error", res.Err()))...)
	}

	if o.telemetry == nil {
		return
	}
	o.telemetry.RecordAgentEvent(ctx, telemetry.AgentEvent{
		RunID:    runID,
		Agent:    id,
		Duration: elapsed,
		Success:  res.OK(),
		Error:    res.Err(),
		Cost:     res.Cost(),
		Tokens:   int64(res.Tokens()),
		Sources:  len(res.Sources()),
	})
}

func (o *Orchestrator) recordWorkflow(ctx context.Context, result WorkflowResult, elapsed time.Duration) {
	if o.telemetry == nil {
		return
	}
	agents := make([]string, 0, len(result.AgentResults))
	for _, r := range result.AgentResults {
		agents = append(agents, r.AgentName())
	}
	o.telemetry.RecordWorkflowEvent(ctx, telemetry.WorkflowEvent{
		RunID:    result.RunID,
		Query:    result.Query,
		Duration: elapsed,
		Success:  result.Error == "",
		Error:    result.Error,
		Cost:     result.TotalCost,
		Tokens:   int64(result.TotalTokens),
		Sources:  result.TotalSources,
		Agents:   agents,
	})
}
