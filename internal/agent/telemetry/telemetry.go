package telemetry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Telemetry keeps running per-agent statistics and mirrors them into
// Prometheus collectors.
type Telemetry struct {
	logger     *zap.Logger
	collectors *collectors

	mu        sync.RWMutex
	workflows WorkflowStats
	agents    map[string]*AgentStats
}

// WorkflowStats aggregates every Execute call.
type WorkflowStats struct {
	Total               int64         `json:"total"`
	Failed              int64         `json:"failed"`
	AverageDuration     time.Duration `json:"average_duration_ns"`
	TotalCost           float64       `json:"total_cost"`
	TotalTokens         int64         `json:"total_tokens"`
	TotalSources        int64         `json:"total_sources"`
	LastExecutionSecond float64       `json:"last_execution_seconds"`
}

// AgentStats aggregates the runs of one agent.
type AgentStats struct {
	Runs            int64         `json:"runs"`
	Failures        int64         `json:"failures"`
	SuccessRate     float64       `json:"success_rate"`
	AverageDuration time.Duration `json:"average_duration_ns"`
	TotalCost       float64       `json:"total_cost"`
	TotalTokens     int64         `json:"total_tokens"`
	LastError       string        `json:"last_error,omitempty"`
}

// WorkflowEvent describes one finished Execute call.
type WorkflowEvent struct {
	RunID    string
	Query    string
	Duration time.Duration
	Success  bool
	Error    string
	Cost     float64
	Tokens   int64
	Sources  int
	Agents   []string
}

// AgentEvent describes one finished agent invocation.
type AgentEvent struct {
	RunID    string
	Agent    string
	Duration time.Duration
	Success  bool
	Error    string
	Cost     float64
	Tokens   int64
	Sources  int
}

// Snapshot is a copy of the current statistics.
type Snapshot struct {
	Workflows WorkflowStats         `json:"workflows"`
	Agents    map[string]AgentStats `json:"agents"`
}

type collectors struct {
	agentRuns        *prometheus.CounterVec
	agentDuration    *prometheus.HistogramVec
	agentCost        *prometheus.CounterVec
	agentTokens      *prometheus.CounterVec
	workflowRuns     *prometheus.CounterVec
	workflowDuration prometheus.Histogram
}

// New creates a Telemetry. Collectors are registered on reg when it is not
// nil.
func New(logger *zap.Logger, reg prometheus.Registerer) (*Telemetry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Telemetry{
		logger: logger.Named("telemetry"),
		agents: make(map[string]*AgentStats),
	}
	if reg != nil {
		c, err := newCollectors(reg)
		if err != nil {
			return nil, err
		}
		t.collectors = c
	}
	return t, nil
}

func newCollectors(reg prometheus.Registerer) (*collectors, error) {
	c := &collectors{
		agentRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchdesk",
			Name:      "agent_runs_total",
			Help:      "Agent invocations by outcome.",
		}, []string{"agent", "status"}),
		agentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "researchdesk",
			Name:      "agent_duration_seconds",
			Help:      "Wall time of agent invocations.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120},
		}, []string{"agent"}),
		agentCost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchdesk",
			Name:      "agent_cost_usd_total",
			Help:      "Estimated upstream cost reported by agents.",
		}, []string{"agent"}),
		agentTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchdesk",
			Name:      "agent_tokens_total",
			Help:      "Tokens consumed by agents.",
		}, []string{"agent"}),
		workflowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchdesk",
			Name:      "workflow_runs_total",
			Help:      "Research workflows by outcome.",
		}, []string{"status"}),
		workflowDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "researchdesk",
			Name:      "workflow_duration_seconds",
			Help:      "Wall time of research workflows.",
			Buckets:   []float64{1, 2, 5, 10, 20, 40, 60, 120, 300},
		}),
	}
	for _, col := range []prometheus.Collector{c.agentRuns, c.agentDuration, c.agentCost, c.agentTokens, c.workflowRuns, c.workflowDuration} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return c, nil
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordAgentEvent folds one agent outcome into the running statistics.
func (t *Telemetry) RecordAgentEvent(ctx context.Context, event AgentEvent) {
	t.mu.Lock()
	st, ok := t.agents[event.Agent]
	if !ok {
		st = &AgentStats{}
		t.agents[event.Agent] = st
	}
	st.Runs++
	if !event.Success {
		st.Failures++
		st.LastError = event.Error
	}
	st.SuccessRate = float64(st.Runs-st.Failures) / float64(st.Runs)
	if st.Runs == 1 {
		st.AverageDuration = event.Duration
	} else {
		total := st.AverageDuration * time.Duration(st.Runs-1)
		st.AverageDuration = (total + event.Duration) / time.Duration(st.Runs)
	}
	st.TotalCost += event.Cost
	st.TotalTokens += event.Tokens
	t.mu.Unlock()

	if c := t.collectors; c != nil {
		c.agentRuns.WithLabelValues(event.Agent, status(event.Success)).Inc()
		c.agentDuration.WithLabelValues(event.Agent).Observe(event.Duration.Seconds())
		c.agentCost.WithLabelValues(event.Agent).Add(event.Cost)
		c.agentTokens.WithLabelValues(event.Agent).Add(float64(event.Tokens))
	}

	t.logger.Debug("agent event",
		zap.String("run_id", event.RunID),
		zap.String("agent", event.Agent),
		zap.Bool("success", event.Success),
		zap.Duration("duration", event.Duration),
		zap.Float64("cost_usd", event.Cost),
		zap.Int64("tokens", event.Tokens),
		zap.Int("sources", event.Sources),
		zap.String("error", event.Error),
	)
}

// RecordWorkflowEvent folds one finished workflow into the running statistics.
func (t *Telemetry) RecordWorkflowEvent(ctx context.Context, event WorkflowEvent) {
	t.mu.Lock()
	w := &t.workflows
	w.Total++
	if !event.Success {
		w.Failed++
	}
	if w.Total == 1 {
		w.AverageDuration = event.Duration
	} else {
		total := w.AverageDuration * time.Duration(w.Total-1)
		w.AverageDuration = (total + event.Duration) / time.Duration(w.Total)
	}
	w.TotalCost += event.Cost
	w.TotalTokens += event.Tokens
	w.TotalSources += int64(event.Sources)
	w.LastExecutionSecond = event.Duration.Seconds()
	t.mu.Unlock()

	if c := t.collectors; c != nil {
		c.workflowRuns.WithLabelValues(status(event.Success)).Inc()
		c.workflowDuration.Observe(event.Duration.Seconds())
	}

	t.logger.Info("workflow finished",
		zap.String("run_id", event.RunID),
		zap.Bool("success", event.Success),
		zap.Duration("duration", event.Duration),
		zap.Float64("cost_usd", event.Cost),
		zap.Int64("tokens", event.Tokens),
		zap.Int("sources", event.Sources),
		zap.Strings("agents", event.Agents),
		zap.String("error", event.Error),
	)
}

// Snapshot returns a deep copy of the current statistics.
func (t *Telemetry) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := Snapshot{Workflows: t.workflows, Agents: make(map[string]AgentStats, len(t.agents))}
	for name, st := range t.agents {
		out.Agents[name] = *st
	}
	return out
}

// StartReporting logs a statistics summary every interval until ctx is done.
func (t *Telemetry) StartReporting(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.logSnapshot("metrics snapshot")
			}
		}
	}()
}

// Shutdown logs a final report.
func (t *Telemetry) Shutdown() {
	t.logSnapshot("final report")
}

func (t *Telemetry) logSnapshot(msg string) {
	snap := t.Snapshot()
	names := make([]string, 0, len(snap.Agents))
	for name := range snap.Agents {
		names = append(names, name)
	}
	sort.Strings(names)

	t.logger.Info(msg,
		zap.Int64("workflows", snap.Workflows.Total),
		zap.Int64("failed", snap.Workflows.Failed),
		zap.Duration("avg_duration", snap.Workflows.AverageDuration),
		zap.Float64("total_cost_usd", snap.Workflows.TotalCost),
		zap.Int64("total_tokens", snap.Workflows.TotalTokens),
	)
	for _, name := range names {
		st := snap.Agents[name]
		t.logger.Info("agent stats",
			zap.String("agent", name),
			zap.Int64("runs", st.Runs),
			zap.Float64("success_rate", st.SuccessRate),
			zap.Duration("avg_duration", st.AverageDuration),
			zap.Float64("cost_usd", st.TotalCost),
		)
	}
}

// CalculateCost prices tokens at pricePerMillion USD per one million tokens.
func CalculateCost(tokens int64, pricePerMillion float64) float64 {
	if tokens <= 0 || pricePerMillion <= 0 {
		return 0
	}
	return float64(tokens) / 1_000_000 * pricePerMillion
}
