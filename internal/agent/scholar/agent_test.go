package scholar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohammad-safakhou/researchdesk/config"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const atomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2406.01234v2</id>
    <published>2024-06-03T17:59:59Z</published>
    <title>Scaling Laws for
      Sparse Mixture of Experts</title>
    <summary>  We study how routing
      affects loss.  </summary>
    <author><name>Ada Lovelace</name></author>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2401.00001v1</id>
    <published>2024-01-01T00:00:00Z</published>
    <title>An Abstractless Note</title>
    <summary></summary>
  </entry>
</feed>`

const newsBody = `{
  "status": "ok",
  "articles": [
    {"title": "MoE models go mainstream", "url": "https://news.test/moe", "publishedAt": "2025-03-02T10:00:00Z", "description": "Vendors ship sparse models.", "source": {"name": "Wire"}},
    {"title": "[Removed]", "url": "https://removed.test", "description": "gone"},
    {"title": "Duplicate of paper", "url": "http://arxiv.org/abs/2406.01234v2", "description": "dup"}
  ]
}`

type stubBackend struct {
	name string
	srcs []core.Source
	err  error
}

func (s stubBackend) Name() string { return s.name }
func (s stubBackend) Search(context.Context, string) ([]core.Source, error) {
	return s.srcs, s.err
}

func TestAgent_ArxivAndNews(t *testing.T) {
	var arxivQuery, newsKey, newsQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/query", func(w http.ResponseWriter, r *http.Request) {
		arxivQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(atomFeed))
	})
	mux.HandleFunc("/v2/everything", func(w http.ResponseWriter, r *http.Request) {
		newsKey = r.Header.Get("X-Api-Key")
		newsQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(newsBody))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	agent := New(config.ScholarConfig{
		ArxivEndpoint:   srv.URL + "/api/query",
		ArxivMaxResults: 5,
		NewsAPIKey:      "news-key",
		NewsEndpoint:    srv.URL + "/v2/everything",
		NewsMaxResults:  5,
		Timeout:         5 * time.Second,
	}, zap.NewNop())

	res := agent.Execute(context.Background(), "mixture of experts", core.DomainAcademic)
	require.True(t, res.OK(), res.Err())
	assert.Equal(t, core.AgentAcademicNews, res.AgentName())

	assert.Equal(t, "search_query=all:mixture+of+experts&start=0&max_results=5&sortBy=relevance&sortOrder=descending", arxivQuery)
	assert.Equal(t, "news-key", newsKey)
	assert.Equal(t, "q=mixture+of+experts&language=en&sortBy=publishedAt&pageSize=5", newsQuery)

	srcs := res.Sources()
	require.Len(t, srcs, 3)
	assert.Equal(t, "Scaling Laws for Sparse Mixture of Experts", srcs[0].Title)
	assert.Equal(t, "http://arxiv.org/abs/2406.01234v2", srcs[0].URL)
	assert.Equal(t, "We study how routing affects loss.", srcs[0].Summary)
	assert.Equal(t, "2024-06-03", srcs[0].PublishedDate)
	assert.Equal(t, 4.0, srcs[0].Confidence)
	assert.Equal(t, core.SourceAcademic, srcs[0].Type)
	assert.Equal(t, "An Abstractless Note", srcs[1].Title)
	assert.Equal(t, "MoE models go mainstream", srcs[2].Title)
	assert.Equal(t, "2025-03-02", srcs[2].PublishedDate)
	assert.Equal(t, 3.5, srcs[2].Confidence)
	assert.Equal(t, core.SourceNews, srcs[2].Type)

	assert.Equal(t, []string{
		"Academic: Scaling Laws for Sparse Mixture of Experts",
		"News: MoE models go mainstream",
	}, res.Findings())
	assert.Equal(t, []string{
		"Found 2 peer-reviewed academic sources",
		"Collected 1 current news articles",
		"Multiple sources provide comprehensive coverage",
	}, res.Insights())
	assert.Equal(t, "Retrieved 3 sources: 2 academic papers and 1 news articles.", res.Summary())
	assert.Zero(t, res.Cost())
	assert.Zero(t, res.Tokens())
}

func TestAgent_NewsSkippedWithoutKey(t *testing.T) {
	a := New(config.ScholarConfig{Timeout: time.Second}, zap.NewNop())
	require.Len(t, a.backends, 1)
	assert.Equal(t, "arxiv", a.backends[0].Name())
}

func TestAgent_PartialFailure(t *testing.T) {
	paper := core.NewSource("Paper", "https://p.test", "abstract", academicConfidence, "", core.SourceAcademic)
	a := NewAgent(zap.NewNop(),
		stubBackend{name: "arxiv", srcs: []core.Source{paper}},
		stubBackend{name: "newsapi", err: errors.New("429 Too Many Requests")},
	)

	res := a.Execute(context.Background(), "q", core.DomainGeneral)
	require.True(t, res.OK())
	assert.Equal(t, "Retrieved 1 sources: 1 academic papers and 0 news articles.", res.Summary())
	assert.Equal(t, []string{
		"Found 1 peer-reviewed academic sources",
		"Multiple sources provide comprehensive coverage",
	}, res.Insights())
}

func TestAgent_AllBackendsFail(t *testing.T) {
	a := NewAgent(zap.NewNop(),
		stubBackend{name: "arxiv", err: errors.New("boom")},
		stubBackend{name: "newsapi", err: errors.New("bad key")},
	)
	res := a.Execute(context.Background(), "q", core.DomainGeneral)
	assert.False(t, res.OK())
	assert.Equal(t, "arxiv: boom; newsapi: bad key", res.Err())
}

func TestAgent_NoResults(t *testing.T) {
	res := NewAgent(zap.NewNop(), stubBackend{name: "arxiv"}).Execute(context.Background(), "q", core.DomainGeneral)
	assert.Equal(t, "no academic or news results", res.Err())
}

func TestAgent_FindingsCleaned(t *testing.T) {
	a := NewAgent(zap.NewNop(), stubBackend{name: "arxiv", srcs: []core.Source{
		core.NewSource("**Sparse** attention", "https://p.test/1", "v1 abstract", academicConfidence, "", core.SourceAcademic),
		core.NewSource("Sparse attention", "https://p.test/2", "v2 abstract", academicConfidence, "", core.SourceAcademic),
	}})

	res := a.Execute(context.Background(), "q", core.DomainGeneral)
	require.True(t, res.OK(), res.Err())
	assert.Equal(t, []string{"Academic: Sparse attention"}, res.Findings())
	assert.Equal(t, "Retrieved 2 sources: 2 academic papers and 0 news articles.", res.Summary())
}

type blockingBackend struct{}

func (blockingBackend) Name() string { return "arxiv" }

func (blockingBackend) Search(ctx context.Context, _ string) ([]core.Source, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAgent_Timeout(t *testing.T) {
	a := NewAgent(zap.NewNop(), blockingBackend{})
	a.timeout = 20 * time.Millisecond
	res := a.Execute(context.Background(), "q", core.DomainGeneral)
	assert.Equal(t, "arxiv: context deadline exceeded", res.Err())
}

func TestArxivBackend_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := NewArxivBackend(core.NewHTTPClient(time.Second, ""), srv.URL, 5, 0)
	_, err := b.Search(context.Background(), "graphs")
	require.Error(t, err)
	assert.True(t, core.IsStatus(err, http.StatusServiceUnavailable))
}

func TestArxivBackend_Paced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	}))
	defer srv.Close()

	b := NewArxivBackend(core.NewHTTPClient(time.Second, ""), srv.URL, 5, time.Hour)
	_, err := b.Search(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = b.Search(ctx, "second")
	require.Error(t, err)
}

func TestArxivQuery(t *testing.T) {
	assert.Equal(t, "all:c%2B%2B+templates", arxivQuery("  c++   templates "))
	assert.Empty(t, arxivQuery("   "))
}
