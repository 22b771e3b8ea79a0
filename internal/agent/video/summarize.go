package video

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researchdesk/config"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/telemetry"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const summaryPrompt = "You are summarising insights from a YouTube video.\n" +
	"Title: {title}\n" +
	"Channel: {channel}\n" +
	"URL: {url}\n\n" +
	"Provide a concise summary, three bullet highlights, and recommended actions if applicable."

// Summary is the LLM digest of one transcript.
type Summary struct {
	Text   string
	Tokens int
	Cost   float64
}

// Summarizer condenses a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, v Video, transcript string) (Summary, error)
}

// LLMSummarizer calls an OpenAI compatible chat completions API.
type LLMSummarizer struct {
	api             openai.Client
	model           string
	maxChars        int
	pricePerMillion float64
	timeout         time.Duration
}

// NewLLMSummarizer returns nil when no API key is configured.
func NewLLMSummarizer(cfg config.SummaryConfig, timeout time.Duration, opts ...option.RequestOption) *LLMSummarizer {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	base := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 5000
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LLMSummarizer{
		api:             openai.NewClient(append(base, opts...)...),
		model:           cfg.Model,
		maxChars:        maxChars,
		pricePerMillion: cfg.PricePerMillion,
		timeout:         timeout,
	}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, v Video, transcript string) (Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	completion, err := s.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(BuildPrompt(v, transcript, s.maxChars)),
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return Summary{}, fmt.Errorf("summary API error %d", apiErr.StatusCode)
		}
		return Summary{}, err
	}
	if len(completion.Choices) == 0 {
		return Summary{}, errors.New("summary API returned no choices")
	}
	tokens := completion.Usage.TotalTokens
	return Summary{
		Text:   strings.TrimSpace(completion.Choices[0].Message.Content),
		Tokens: int(tokens),
		Cost:   telemetry.CalculateCost(tokens, s.pricePerMillion),
	}, nil
}

// BuildPrompt fills the summary prompt and appends at most maxChars runes of
// the transcript.
func BuildPrompt(v Video, transcript string, maxChars int) string {
	prompt := strings.NewReplacer(
		"{title}", v.Title,
		"{channel}", v.Channel,
		"{url}", v.URL(),
	).Replace(summaryPrompt)
	excerpt := transcript
	if r := []rune(transcript); maxChars > 0 && len(r) > maxChars {
		excerpt = string(r[:maxChars])
	}
	return prompt + "\n\nTranscript:\n" + excerpt
}
