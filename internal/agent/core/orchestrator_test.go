package core

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/researchdesk/internal/agent/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func staticAgent(id string, report AgentReport) Agent {
	return AgentFunc{ID: id, Fn: func(ctx context.Context, query string, domain Domain) AgentResult {
		return Succeeded(id, report)
	}}
}

func failingAgent(id, reason string) Agent {
	return AgentFunc{ID: id, Fn: func(ctx context.Context, query string, domain Domain) AgentResult {
		return Failed(id, reason)
	}}
}

func sources(n int, prefix string) []Source {
	out := make([]Source, n)
	for i := range out {
		out[i] = NewSource(fmt.Sprintf("%s %d", prefix, i+1), fmt.Sprintf("https://example.com/%s/%d", prefix, i+1), "", 4, "", SourceWeb)
	}
	return out
}

func newTestOrchestrator(t *testing.T, agents []Agent, opts ...Option) *Orchestrator {
	t.Helper()
	reg, err := NewRegistry(agents...)
	require.NoError(t, err)
	return NewOrchestrator(reg, zap.NewNop(), opts...)
}

func TestExecute_EndToEnd(t *testing.T) {
	deep := AgentFunc{ID: AgentDeepSearch, Fn: func(ctx context.Context, query string, domain Domain) AgentResult {
		time.Sleep(time.Millisecond)
		return Succeeded(AgentDeepSearch, AgentReport{
			Sources:  sources(3, "deep"),
			Summary:  "X",
			Findings: []string{"Qubits scale", "Error rates fell"},
			Insights: []string{"Momentum is strong"},
			Cost:     0.0125,
			Tokens:   2500,
		})
	}}
	academic := staticAgent(AgentAcademicNews, AgentReport{
		Sources:  sources(2, "paper"),
		Findings: []string{"Error rates fell", "Academic: Surface codes"},
		Insights: []string{"Found 2 peer-reviewed academic sources"},
	})
	o := newTestOrchestrator(t, []Agent{deep, academic})

	res := o.Execute(context.Background(), Request{
		Query:    "quantum computing breakthroughs",
		Domain:   DomainAcademic,
		AgentIDs: []string{AgentDeepSearch, AgentAcademicNews},
	})

	require.Empty(t, res.Error)
	require.Len(t, res.AgentResults, 2)
	assert.Equal(t, AgentDeepSearch, res.AgentResults[0].AgentName())
	assert.Equal(t, AgentAcademicNews, res.AgentResults[1].AgentName())
	assert.Equal(t, 5, res.TotalSources)
	assert.Equal(t, "X", res.Summary)
	assert.Equal(t, []string{"Qubits scale", "Error rates fell", "Academic: Surface codes"}, res.KeyFindings)
	assert.InDelta(t, 0.0125, res.TotalCost, 1e-12)
	assert.Equal(t, 2500, res.TotalTokens)
	assert.Greater(t, res.ExecutionTime, 0.0)
	assert.Equal(t, "quantum computing breakthroughs", res.Query)
	assert.Equal(t, DomainAcademic, res.Domain)
	assert.NotEmpty(t, res.RunID)
	assert.False(t, res.Timestamp.IsZero())
}

func TestExecute_UnknownAgentSkipped(t *testing.T) {
	o := newTestOrchestrator(t, []Agent{staticAgent(AgentDeepSearch, AgentReport{Sources: sources(1, "d"), Summary: "ok"})})

	res := o.Execute(context.Background(), Request{Query: "q", Domain: DomainGeneral, AgentIDs: []string{"nonexistent", AgentDeepSearch}})

	require.Empty(t, res.Error)
	require.Len(t, res.AgentResults, 1)
	assert.Equal(t, AgentDeepSearch, res.AgentResults[0].AgentName())
	assert.Equal(t, 1, res.TotalSources)
}

func TestExecute_Containment(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	cases := map[string]Agent{
		"missing credential": failingAgent(AgentVideo, "YOUTUBE_API_KEY not configured"),
		"panic": AgentFunc{ID: AgentVideo, Fn: func(ctx context.Context, query string, domain Domain) AgentResult {
			panic("boom")
		}},
		"timeout": AgentFunc{ID: AgentVideo, Fn: func(ctx context.Context, query string, domain Domain) AgentResult {
			<-block
			return Succeeded(AgentVideo, AgentReport{Sources: sources(9, "late"), Cost: 9})
		}},
	}
	wantErr := map[string]string{
		"missing credential": "YOUTUBE_API_KEY not configured",
		"panic":              "video failed: boom",
		"timeout":            "timeout",
	}

	for name, broken := range cases {
		t.Run(name, func(t *testing.T) {
			good := staticAgent(AgentDeepSearch, AgentReport{
				Sources:  sources(2, "d"),
				Summary:  "S1",
				Findings: []string{"F1"},
				Cost:     0.5,
				Tokens:   100,
			})
			o := newTestOrchestrator(t, []Agent{good, broken}, WithDispatchTimeout(50*time.Millisecond))

			res := o.Execute(context.Background(), Request{Query: "q", Domain: DomainTechnology, AgentIDs: []string{AgentDeepSearch, AgentVideo}})

			require.Empty(t, res.Error)
			require.Len(t, res.AgentResults, 2)
			assert.True(t, res.AgentResults[0].OK())
			assert.False(t, res.AgentResults[1].OK())
			assert.Equal(t, wantErr[name], res.AgentResults[1].Err())
			assert.Empty(t, res.AgentResults[1].Sources())
			assert.Equal(t, 2, res.TotalSources)
			assert.InDelta(t, 0.5, res.TotalCost, 1e-12)
			assert.Equal(t, 100, res.TotalTokens)
			assert.Equal(t, "S1", res.Summary)
			assert.Equal(t, []string{"F1"}, res.KeyFindings)
		})
	}
}

func TestExecute_DedupAcrossAgents(t *testing.T) {
	a := staticAgent(AgentDeepSearch, AgentReport{Findings: []string{"X", "Y"}})
	b := staticAgent(AgentAcademicNews, AgentReport{Findings: []string{"X"}})
	o := newTestOrchestrator(t, []Agent{a, b})

	res := o.Execute(context.Background(), Request{Query: "q", AgentIDs: []string{AgentDeepSearch, AgentAcademicNews}})
	assert.Equal(t, []string{"X", "Y"}, res.KeyFindings)

	res = o.Execute(context.Background(), Request{Query: "q", AgentIDs: []string{AgentAcademicNews, AgentDeepSearch}})
	assert.Equal(t, []string{"X", "Y"}, res.KeyFindings)
}

func TestExecute_FindingsCapped(t *testing.T) {
	var first, second []string
	for i := 0; i < 12; i++ {
		first = append(first, fmt.Sprintf("a%d", i))
	}
	for i := 0; i < 13; i++ {
		second = append(second, fmt.Sprintf("b%d", i))
	}
	o := newTestOrchestrator(t, []Agent{
		staticAgent(AgentDeepSearch, AgentReport{Findings: first, Insights: second}),
		staticAgent(AgentVideo, AgentReport{Findings: second}),
	})

	res := o.Execute(context.Background(), Request{Query: "q", AgentIDs: []string{AgentDeepSearch, AgentVideo}})

	require.Len(t, res.KeyFindings, 10)
	assert.Equal(t, first[:10], res.KeyFindings)
	require.Len(t, res.Insights, 8)
	assert.Equal(t, second[:8], res.Insights)
}

func TestExecute_SummaryPriority(t *testing.T) {
	o := newTestOrchestrator(t, []Agent{
		staticAgent(AgentVideo, AgentReport{Summary: "S2"}),
		staticAgent(AgentDeepSearch, AgentReport{Summary: "**S1** <b>deep</b>"}),
	})

	for _, order := range [][]string{{AgentVideo, AgentDeepSearch}, {AgentDeepSearch, AgentVideo}} {
		res := o.Execute(context.Background(), Request{Query: "q", AgentIDs: order})
		assert.Equal(t, "S1 deep", res.Summary, "order %v", order)
	}
}

func TestExecute_FirstSummaryWithoutDeepSearch(t *testing.T) {
	o := newTestOrchestrator(t, []Agent{
		staticAgent(AgentDeepSearch, AgentReport{Summary: "  "}),
		staticAgent(AgentVideo, AgentReport{Summary: "from video"}),
		staticAgent(AgentAcademicNews, AgentReport{Summary: "from papers"}),
	})

	res := o.Execute(context.Background(), Request{Query: "q", AgentIDs: []string{AgentDeepSearch, AgentAcademicNews, AgentVideo}})
	assert.Equal(t, "from papers", res.Summary)
}

func TestExecute_FallbackSummary(t *testing.T) {
	o := newTestOrchestrator(t, []Agent{
		staticAgent(AgentDeepSearch, AgentReport{Sources: sources(3, "d")}),
		staticAgent(AgentVideo, AgentReport{Sources: sources(4, "v")}),
		failingAgent(AgentAcademicNews, "no results"),
	})

	res := o.Execute(context.Background(), Request{Query: "q", AgentIDs: []string{AgentDeepSearch, AgentVideo, AgentAcademicNews}})

	assert.Equal(t, "Research completed using 2 specialized agents. Collected 7 sources from multiple channels.", res.Summary)
	assert.Equal(t, 7, res.TotalSources)
	assert.Empty(t, res.Error)
}

func TestExecute_Preconditions(t *testing.T) {
	var calls atomic.Int32
	counting := AgentFunc{ID: AgentDeepSearch, Fn: func(ctx context.Context, query string, domain Domain) AgentResult {
		calls.Add(1)
		return Succeeded(AgentDeepSearch, AgentReport{})
	}}
	o := newTestOrchestrator(t, []Agent{counting})

	cases := []struct {
		name string
		req  Request
		want string
	}{
		{"blank query", Request{Query: "   ", AgentIDs: []string{AgentDeepSearch}}, ErrQueryRequired},
		{"no agents", Request{Query: "q"}, ErrNoAgentsSelected},
		{"only unknown agents", Request{Query: "q", AgentIDs: []string{"nope", "missing"}}, ErrNoAgentsSelected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := o.Execute(context.Background(), tc.req)
			assert.Equal(t, tc.want, res.Error)
			assert.Empty(t, res.AgentResults)
			assert.NotNil(t, res.KeyFindings)
			assert.NotEmpty(t, res.Summary)
		})
	}
	assert.Zero(t, calls.Load())
}

func TestExecute_AllAgentsFailed(t *testing.T) {
	o := newTestOrchestrator(t, []Agent{failingAgent(AgentDeepSearch, "API error 500"), failingAgent(AgentVideo, "quota")})

	res := o.Execute(context.Background(), Request{Query: "q", AgentIDs: []string{AgentDeepSearch, AgentVideo}})

	assert.Equal(t, ErrAllAgentsFailed, res.Error)
	require.Len(t, res.AgentResults, 2)
	assert.Equal(t, FallbackSummary(0, 0), res.Summary)
	assert.Zero(t, res.TotalCost)
}

func TestDispatch_RequestOrderAndConcurrency(t *testing.T) {
	started := make(chan string, 3)
	release := make(chan struct{})
	mk := func(id string, delay time.Duration) Agent {
		return AgentFunc{ID: id, Fn: func(ctx context.Context, query string, domain Domain) AgentResult {
			started <- id
			<-release
			time.Sleep(delay)
			return Succeeded(id, AgentReport{Summary: id})
		}}
	}
	o := newTestOrchestrator(t, []Agent{
		mk(AgentDeepSearch, 30*time.Millisecond),
		mk(AgentVideo, 0),
		mk(AgentAcademicNews, 10*time.Millisecond),
	})

	go func() {
		// every agent must be running before any is allowed to finish
		for i := 0; i < 3; i++ {
			select {
			case <-started:
			case <-time.After(2 * time.Second):
				t.Error("agents did not start concurrently")
			}
		}
		close(release)
	}()

	results := o.Dispatch(context.Background(), "q", DomainGeneral, []string{AgentDeepSearch, AgentVideo, AgentAcademicNews})

	require.Len(t, results, 3)
	assert.Equal(t, AgentDeepSearch, results[0].AgentName())
	assert.Equal(t, AgentVideo, results[1].AgentName())
	assert.Equal(t, AgentAcademicNews, results[2].AgentName())
}

func TestDispatch_AliasesRunOnce(t *testing.T) {
	var calls atomic.Int32
	o := newTestOrchestrator(t, []Agent{AgentFunc{ID: AgentDeepSearch, Fn: func(ctx context.Context, query string, domain Domain) AgentResult {
		calls.Add(1)
		return Succeeded(AgentDeepSearch, AgentReport{})
	}}})

	results := o.Dispatch(context.Background(), "q", DomainGeneral, []string{"perplexity", AgentDeepSearch, "PERPLEXITY"})

	require.Len(t, results, 1)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatch_PassesQueryAndDomain(t *testing.T) {
	var gotQuery string
	var gotDomain Domain
	o := newTestOrchestrator(t, []Agent{AgentFunc{ID: AgentVideo, Fn: func(ctx context.Context, query string, domain Domain) AgentResult {
		gotQuery, gotDomain = query, domain
		return Succeeded(AgentVideo, AgentReport{Metadata: map[string]any{MetaExecutionTime: 1.5}})
	}}})

	res := o.Execute(context.Background(), Request{Query: "  mrna vaccines ", Domain: "Medical", AgentIDs: []string{"youtube"}})

	assert.Equal(t, "mrna vaccines", gotQuery)
	assert.Equal(t, DomainMedical, gotDomain)
	require.Len(t, res.AgentResults, 1)
	assert.Equal(t, 1.5, res.AgentResults[0].ExecutionTime())
}

func TestExecute_RecordsTelemetry(t *testing.T) {
	tel, err := telemetry.New(zap.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)
	o := newTestOrchestrator(t, []Agent{
		staticAgent(AgentDeepSearch, AgentReport{Sources: sources(1, "d"), Cost: 0.2, Tokens: 40}),
		failingAgent(AgentVideo, "quota"),
	}, WithTelemetry(tel))

	o.Execute(context.Background(), Request{Query: "q", AgentIDs: []string{AgentDeepSearch, AgentVideo}})

	snap := tel.Snapshot()
	assert.Equal(t, int64(1), snap.Workflows.Total)
	assert.Equal(t, int64(1), snap.Agents[AgentDeepSearch].Runs)
	assert.Equal(t, int64(40), snap.Agents[AgentDeepSearch].TotalTokens)
	assert.Equal(t, int64(1), snap.Agents[AgentVideo].Failures)
	assert.Equal(t, "quota", snap.Agents[AgentVideo].LastError)
}
