package scholar

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researchdesk/internal/agent/core"
	"golang.org/x/time/rate"
)

const (
	defaultArxivEndpoint = "https://export.arxiv.org/api/query"
	academicConfidence   = 4.0
)

// ArxivBackend queries the arXiv Atom API. arXiv asks clients to wait three
// seconds between calls, so requests share one limiter.
type ArxivBackend struct {
	http       *core.HTTPClient
	endpoint   string
	maxResults int
	limiter    *rate.Limiter
}

// NewArxivBackend builds the backend. interval <= 0 disables pacing.
func NewArxivBackend(http *core.HTTPClient, endpoint string, maxResults int, interval time.Duration) *ArxivBackend {
	if endpoint == "" {
		endpoint = defaultArxivEndpoint
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &ArxivBackend{
		http:       http,
		endpoint:   endpoint,
		maxResults: maxResults,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

func (b *ArxivBackend) Name() string { return "arxiv" }

func (b *ArxivBackend) Search(ctx context.Context, query string) ([]core.Source, error) {
	q := arxivQuery(query)
	if q == "" {
		return nil, fmt.Errorf("empty arXiv query")
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d&sortBy=relevance&sortOrder=descending",
		b.endpoint, q, b.maxResults)
	raw, err := b.http.Fetch(ctx, u, map[string]string{"Accept": "application/atom+xml"})
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	out := make([]core.Source, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		title := collapse(e.Title)
		if title == "" {
			title = "Untitled"
		}
		published := strings.TrimSpace(e.Published)
		if len(published) > 10 {
			published = published[:10]
		}
		out = append(out, core.NewSource(title, e.ID, collapse(e.Summary), academicConfidence, published, core.SourceAcademic))
	}
	return out, nil
}

// arxivQuery builds the search_query value: all:<term>+<term>...
func arxivQuery(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}
	for i, t := range terms {
		terms[i] = url.QueryEscape(t)
	}
	return "all:" + strings.Join(terms, "+")
}

func collapse(s string) string { return strings.Join(strings.Fields(s), " ") }

type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
}
