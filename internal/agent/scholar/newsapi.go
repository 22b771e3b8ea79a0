package scholar

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mohammad-safakhou/researchdesk/internal/agent/core"
)

const (
	defaultNewsEndpoint = "https://newsapi.org/v2/everything"
	newsConfidence      = 3.5
)

// NewsBackend searches newsapi.org.
type NewsBackend struct {
	http       *core.HTTPClient
	apiKey     string
	endpoint   string
	maxResults int
}

// NewNewsBackend returns nil when apiKey is empty; news is optional.
func NewNewsBackend(http *core.HTTPClient, apiKey, endpoint string, maxResults int) *NewsBackend {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	if endpoint == "" {
		endpoint = defaultNewsEndpoint
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &NewsBackend{http: http, apiKey: apiKey, endpoint: endpoint, maxResults: maxResults}
}

func (n *NewsBackend) Name() string { return "newsapi" }

func (n *NewsBackend) Search(ctx context.Context, query string) ([]core.Source, error) {
	var resp struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		Articles []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			PublishedAt string `json:"publishedAt"`
			Description string `json:"description"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	u := fmt.Sprintf("%s?q=%s&language=en&sortBy=publishedAt&pageSize=%d", n.endpoint, url.QueryEscape(query), n.maxResults)
	if err := n.http.DoJSON(ctx, "GET", u, map[string]string{"X-Api-Key": n.apiKey}, nil, &resp); err != nil {
		return nil, fmt.Errorf("NewsAPI request: %w", err)
	}
	if resp.Status == "error" {
		return nil, fmt.Errorf("NewsAPI: %s", resp.Message)
	}

	out := make([]core.Source, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		if a.URL == "" || a.Title == "[Removed]" {
			continue
		}
		published := a.PublishedAt
		if len(published) > 10 {
			published = published[:10]
		}
		out = append(out, core.NewSource(strings.TrimSpace(a.Title), a.URL, strings.TrimSpace(a.Description), newsConfidence, published, core.SourceNews))
	}
	return out, nil
}
