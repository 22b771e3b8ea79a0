// Package video is the video research agent: YouTube search, transcripts and
// LLM summaries of what was said.
package video

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/researchdesk/config"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/core"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchdesk/internal/helpers"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrMissingAPIKey = errors.New("YOUTUBE_API_KEY not configured")

const (
	ModeSimple   = "simple"
	ModeExtended = "extended"

	videoConfidence = 4.0
	insightMaxRunes = 200
)

// MaxResults is the number of videos processed per mode.
func MaxResults(mode string) int {
	if mode == ModeSimple {
		return 2
	}
	return 6
}

// Agent adapts the video pipeline to core.Agent.
type Agent struct {
	searcher    Searcher
	setupErr    error
	transcriber Transcriber
	summarizer  Summarizer
	artifacts   *Artifacts
	mode        string
	timeout     time.Duration
	transcribe  time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// Options carry the collaborators of an Agent. Nil Transcriber or Summarizer
// disables that step.
type Options struct {
	Searcher    Searcher
	SetupErr    error
	Transcriber Transcriber
	Summarizer  Summarizer
	Artifacts   *Artifacts
	Mode        string

	// SearchTimeout bounds the YouTube search and details calls.
	// TranscribeTimeout bounds each video's transcript step; when zero it
	// falls back to SearchTimeout. Zero for both means only the caller's
	// context applies.
	SearchTimeout     time.Duration
	TranscribeTimeout time.Duration
}

func NewAgent(opts Options, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := opts.Mode
	if mode != ModeSimple {
		mode = ModeExtended
	}
	transcribeTimeout := opts.TranscribeTimeout
	if transcribeTimeout <= 0 {
		transcribeTimeout = opts.SearchTimeout
	}
	return &Agent{
		searcher:    opts.Searcher,
		setupErr:    opts.SetupErr,
		transcriber: opts.Transcriber,
		summarizer:  opts.Summarizer,
		artifacts:   opts.Artifacts,
		mode:        mode,
		timeout:     opts.SearchTimeout,
		transcribe:  transcribeTimeout,
		logger:      logger.Named("video"),
		now:         time.Now,
	}
}

// New wires the production pipeline from configuration. A missing YouTube key
// is not an error here; the agent reports it on each run.
func New(ctx context.Context, cfg config.VideoConfig, dataDir string, logger *zap.Logger) *Agent {
	searcher, err := NewYouTubeSearcher(ctx, cfg.APIKey, cfg.PublishedAfterDays, logger)
	opts := Options{
		SetupErr:          err,
		Artifacts:         NewArtifacts(dataDir),
		Mode:              cfg.Mode,
		SearchTimeout:     cfg.Timeout,
		TranscribeTimeout: cfg.Timeout,
	}
	if err == nil {
		opts.Searcher = searcher
	}

	var transcriber Transcriber = NewCaptionTranscriber(core.NewHTTPClient(cfg.Timeout, ""), cfg.CaptionBaseURL)
	if cfg.Whisper.Enabled {
		transcriber = FallbackTranscriber{
			Primary:  transcriber,
			Fallback: NewWhisperTranscriber(cfg.Whisper.YTDLPBin, cfg.Whisper.WhisperBin, cfg.Whisper.Model, cfg.Whisper.Workers, nil),
		}
		opts.TranscribeTimeout = cfg.Whisper.Timeout
	}
	opts.Transcriber = transcriber
	if s := NewLLMSummarizer(cfg.Summary, cfg.Timeout); s != nil {
		opts.Summarizer = s
	}
	return NewAgent(opts, logger)
}

func (a *Agent) Name() string { return core.AgentVideo }

func (a *Agent) search(ctx context.Context, query string, limit int) ([]Video, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	return a.searcher.Search(ctx, query, limit)
}

type processed struct {
	video   Video
	summary string
	insight string
	tokens  int
	cost    float64
	record  Record
}

func (a *Agent) Execute(ctx context.Context, query string, domain core.Domain) core.AgentResult {
	if a.searcher == nil {
		err := a.setupErr
		if err == nil {
			err = ErrMissingAPIKey
		}
		return core.Failed(a.Name(), err.Error())
	}
	sw := telemetry.StartStopwatch()
	limit := MaxResults(a.mode)

	candidates, err := a.search(ctx, query, limit)
	if err != nil {
		a.logger.Warn("search failed", zap.Error(err))
		return core.Failed(a.Name(), fmt.Sprintf("YouTube search failed: %v", err))
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	if len(candidates) == 0 {
		return core.Failed(a.Name(), "no videos found")
	}

	runID := a.now().UTC().Format("20060102T150405") + "-" + uuid.NewString()[:8]
	out := make([]processed, len(candidates))
	var g errgroup.Group
	for i, v := range candidates {
		g.Go(func() error {
			out[i] = a.process(ctx, runID, v)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return core.Failed(a.Name(), err.Error())
	}

	report := core.AgentReport{Metadata: map[string]any{}}
	records := make([]Record, 0, len(out))
	var findings, insights []string
	for _, p := range out {
		published := ""
		if !p.video.PublishedAt.IsZero() {
			published = p.video.PublishedAt.Format("2006-01-02")
		}
		title := helpers.CleanText(p.video.Title)
		if title == "" {
			title = "Untitled video"
		}
		report.Sources = append(report.Sources, core.NewSource(title, p.video.URL(), helpers.CleanText(p.summary), videoConfidence, published, core.SourceVideo))
		findings = append(findings, "Video: "+title)
		if p.insight != "" {
			insights = append(insights, p.insight)
		}
		report.Tokens += p.tokens
		report.Cost += p.cost
		records = append(records, p.record)
	}
	report.Findings = helpers.CleanList(findings)
	report.Insights = helpers.CleanList(insights)
	report.Summary = helpers.CleanText(fmt.Sprintf(`Analyzed %d videos for "%s".`, len(out), query))

	metaPath, err := a.artifacts.WriteMetadata(runID, records)
	if err != nil {
		a.logger.Warn("write metadata failed", zap.Error(err))
	}
	report.Metadata[core.MetaExecutionTime] = sw.Seconds()
	report.Metadata["run_id"] = runID
	report.Metadata["mode"] = a.mode
	report.Metadata["video_count"] = len(out)
	report.Metadata["domain"] = string(domain)
	if metaPath != "" {
		report.Metadata["metadata_path"] = metaPath
	}
	return core.Succeeded(a.Name(), report)
}

func (a *Agent) process(ctx context.Context, runID string, v Video) processed {
	p := processed{video: v, summary: "No transcript available."}
	p.record = Record{Video: v, Language: "unknown"}

	var t Transcript
	var terr error
	if a.transcriber != nil {
		t, terr = a.transcript(ctx, v)
	}
	if terr != nil {
		p.record.TranscriptError = terr.Error()
	}

	if t.Text == "" {
		if terr != nil {
			p.summary = fmt.Sprintf("No transcript available (%v).", terr)
		}
		p.record.Summary = p.summary
		a.logger.Debug("no transcript", zap.String("video", v.ID), zap.Error(terr))
		return p
	}

	lang := t.Language
	if lang == "" {
		lang = "unknown"
	}
	p.record.Language = lang
	p.record.TranscriptSource = t.Source
	if path, err := a.artifacts.WriteTranscript(runID, v.ID, t.Text); err != nil {
		a.logger.Warn("write transcript failed", zap.String("video", v.ID), zap.Error(err))
	} else {
		p.record.TranscriptPath = path
	}

	switch {
	case !strings.HasPrefix(lang, "en") && lang != "unknown":
		p.summary = fmt.Sprintf("Transcript available but skipped summarization due to language (%s).", lang)
	case a.summarizer == nil:
		p.summary = excerpt(t.Text, insightMaxRunes)
	default:
		s, err := a.summarizer.Summarize(ctx, v, t.Text)
		if err != nil {
			a.logger.Warn("summarize failed", zap.String("video", v.ID), zap.Error(err))
			p.summary = excerpt(t.Text, insightMaxRunes)
			break
		}
		p.summary = s.Text
		p.tokens = s.Tokens
		p.cost = s.Cost
		p.insight = firstLine(s.Text)
	}
	p.record.Summary = p.summary
	return p
}

// transcript runs the transcriber under the per-video bound. A timeout is an
// ordinary transcript failure, even when the transcriber ignores its context.
func (a *Agent) transcript(ctx context.Context, v Video) (Transcript, error) {
	if a.transcribe <= 0 {
		return a.transcriber.Transcribe(ctx, v)
	}
	ctx, cancel := context.WithTimeout(ctx, a.transcribe)
	defer cancel()

	type outcome struct {
		t   Transcript
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		t, err := a.transcriber.Transcribe(ctx, v)
		done <- outcome{t, err}
	}()
	select {
	case o := <-done:
		return o.t, o.err
	case <-ctx.Done():
		return Transcript{}, ctx.Err()
	}
}

// firstLine returns the first meaningful line of an LLM summary without list
// markers or a leading "Summary:" label.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-•*#0123456789. "))
		if l := strings.ToLower(line); strings.HasPrefix(l, "summary:") {
			line = strings.TrimSpace(line[len("summary:"):])
		}
		line = helpers.CleanText(line)
		if len([]rune(line)) < 20 {
			continue
		}
		return excerpt(line, insightMaxRunes)
	}
	return ""
}

func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return strings.TrimSpace(string(r[:n])) + "..."
	}
	return s
}
