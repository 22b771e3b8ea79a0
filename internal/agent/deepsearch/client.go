package deepsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researchdesk/config"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/core"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/telemetry"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var (
	ErrMissingAPIKey = errors.New("PERPLEXITY_API_KEY not configured")
	ErrNoResponse    = errors.New("No response from API")
	ErrTimeout       = errors.New("Request timeout")
)

// Citation is one cited web page.
type Citation struct {
	URL     string
	Title   string
	Snippet string
	Type    string
	Date    string
}

// Result is a parsed deep search answer.
type Result struct {
	Content    string
	Sections   Sections
	Citations  []Citation
	TokensUsed int
	Cost       float64
	Model      string
	Created    time.Time
}

// Client talks to the Perplexity chat completions API, which is OpenAI
// compatible.
type Client struct {
	api             openai.Client
	model           string
	maxTokens       int
	temperature     float64
	topP            float64
	timeout         time.Duration
	pricePerMillion float64
}

// NewClient builds a client from configuration. Extra options are appended
// after the configured ones.
func NewClient(cfg config.DeepSearchConfig, opts ...option.RequestOption) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		api:             openai.NewClient(append(base, opts...)...),
		model:           cfg.Model,
		maxTokens:       cfg.MaxTokens,
		temperature:     cfg.Temperature,
		topP:            cfg.TopP,
		timeout:         timeout,
		pricePerMillion: cfg.PricePerMillion,
	}, nil
}

// Search asks the model to research query with the domain's system prompt.
func (c *Client) Search(ctx context.Context, query string, domain core.Domain) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt(domain)),
			openai.UserMessage(query),
		},
		MaxTokens:   openai.Int(int64(c.maxTokens)),
		Temperature: openai.Float(c.temperature),
		TopP:        openai.Float(c.topP),
	},
		option.WithJSONSet("return_citations", true),
		option.WithJSONSet("return_images", false),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("API error %d", apiErr.StatusCode)
		}
		return nil, fmt.Errorf("Connection error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, ErrNoResponse
	}

	content := completion.Choices[0].Message.Content
	tokens := int(completion.Usage.TotalTokens)
	created := time.Now().UTC()
	if completion.Created > 0 {
		created = time.Unix(completion.Created, 0).UTC()
	}
	citations, err := parseCitations(completion.RawJSON())
	if err != nil {
		return nil, fmt.Errorf("Parse error: %w", err)
	}

	return &Result{
		Content:    content,
		Sections:   ExtractSections(content),
		Citations:  citations,
		TokensUsed: tokens,
		Cost:       telemetry.CalculateCost(int64(tokens), c.pricePerMillion),
		Model:      completion.Model,
		Created:    created,
	}, nil
}

// Perplexity returns citations either as plain URLs or as objects, and newer
// responses add search_results with titles and dates.
type rawEnvelope struct {
	Citations     []json.RawMessage `json:"citations"`
	SearchResults []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Date    string `json:"date"`
		Snippet string `json:"snippet"`
	} `json:"search_results"`
}

type rawCitation struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Type    string `json:"type"`
}

func parseCitations(raw string) ([]Citation, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var env rawEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, err
	}

	byURL := make(map[string]int)
	var out []Citation
	for _, item := range env.Citations {
		var url string
		if err := json.Unmarshal(item, &url); err == nil {
			byURL[url] = len(out)
			out = append(out, Citation{URL: url})
			continue
		}
		var obj rawCitation
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}
		byURL[obj.URL] = len(out)
		out = append(out, Citation{URL: obj.URL, Title: obj.Title, Snippet: obj.Snippet, Type: obj.Type})
	}

	for _, sr := range env.SearchResults {
		i, ok := byURL[sr.URL]
		if !ok {
			if len(env.Citations) > 0 {
				continue
			}
			byURL[sr.URL] = len(out)
			out = append(out, Citation{URL: sr.URL})
			i = len(out) - 1
		}
		c := &out[i]
		if c.Title == "" {
			c.Title = sr.Title
		}
		if c.Snippet == "" {
			c.Snippet = sr.Snippet
		}
		if c.Date == "" {
			c.Date = sr.Date
		}
	}
	return out, nil
}
