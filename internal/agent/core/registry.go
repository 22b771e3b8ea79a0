package core

import (
	"fmt"
	"sort"
	"strings"
)

// Canonical agent ids.
const (
	AgentDeepSearch   = "deepsearch"
	AgentVideo        = "video"
	AgentAcademicNews = "academicnews"
)

var aliases = map[string]string{
	"perplexity": AgentDeepSearch,
	"youtube":    AgentVideo,
	"api":        AgentAcademicNews,
}

var domainAgents = map[Domain][]string{
	DomainTechnology: {AgentDeepSearch, AgentVideo},
	DomainMedical:    {AgentDeepSearch, AgentVideo, AgentAcademicNews},
	DomainStocks:     {AgentDeepSearch, AgentAcademicNews},
	DomainAcademic:   {AgentDeepSearch, AgentAcademicNews},
	DomainGeneral:    {AgentDeepSearch},
}

// Descriptor is the catalogue entry shown to users before a run.
type Descriptor struct {
	ID            string  `json:"id"`
	DisplayName   string  `json:"display_name"`
	Description   string  `json:"description"`
	EstimatedCost float64 `json:"estimated_cost"`
	EstimatedTime float64 `json:"estimated_time"`
}

var descriptors = map[string]Descriptor{
	AgentDeepSearch: {
		ID:            AgentDeepSearch,
		DisplayName:   "Deep Search",
		Description:   "LLM web research with citations",
		EstimatedCost: 0.001,
		EstimatedTime: 5,
	},
	AgentVideo: {
		ID:            AgentVideo,
		DisplayName:   "Video Research",
		Description:   "Video search, transcripts and summaries",
		EstimatedCost: 0.15,
		EstimatedTime: 2,
	},
	AgentAcademicNews: {
		ID:            AgentAcademicNews,
		DisplayName:   "Academic & News",
		Description:   "Papers from arXiv and current news articles",
		EstimatedCost: 0.35,
		EstimatedTime: 3,
	},
}

// CanonicalID resolves aliases. Unknown ids are returned lower-cased.
func CanonicalID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if c, ok := aliases[id]; ok {
		return c
	}
	return id
}

// DefaultAgents returns the agents recommended for a domain.
func DefaultAgents(d Domain) []string {
	ids, ok := domainAgents[d]
	if !ok {
		ids = domainAgents[DomainGeneral]
	}
	return append([]string(nil), ids...)
}

// Estimate sums the catalogue cost and time estimates of the given agents.
// Unknown ids contribute nothing.
func Estimate(ids []string) (cost, seconds float64) {
	seen := map[string]bool{}
	for _, id := range ids {
		id = CanonicalID(id)
		d, ok := descriptors[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		cost += d.EstimatedCost
		seconds += d.EstimatedTime
	}
	return cost, seconds
}

// Registry is the fixed table of agents available to the dispatcher. It is
// filled once at startup and read concurrently afterwards.
type Registry struct {
	agents map[string]Agent
}

func NewRegistry(agents ...Agent) (*Registry, error) {
	r := &Registry{agents: make(map[string]Agent, len(agents))}
	for _, a := range agents {
		id := CanonicalID(a.Name())
		if id == "" {
			return nil, fmt.Errorf("agent with empty name")
		}
		if _, dup := r.agents[id]; dup {
			return nil, fmt.Errorf("agent %q registered twice", id)
		}
		r.agents[id] = a
	}
	return r, nil
}

// Lookup resolves id (or an alias) to its agent.
func (r *Registry) Lookup(id string) (Agent, bool) {
	a, ok := r.agents[CanonicalID(id)]
	return a, ok
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Descriptors returns the catalogue entries of the registered agents.
func (r *Registry) Descriptors() []Descriptor {
	ids := r.IDs()
	out := make([]Descriptor, 0, len(ids))
	for _, id := range ids {
		d, ok := descriptors[id]
		if !ok {
			d = Descriptor{ID: id, DisplayName: id}
		}
		out = append(out, d)
	}
	return out
}
