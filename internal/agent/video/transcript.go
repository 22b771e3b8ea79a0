package video

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mohammad-safakhou/researchdesk/internal/agent/core"
	"golang.org/x/sync/semaphore"
)

// Transcript is the spoken text of a video.
type Transcript struct {
	Text     string
	Language string
	Source   string
}

// Transcriber fetches or produces a transcript for a video.
type Transcriber interface {
	Transcribe(ctx context.Context, v Video) (Transcript, error)
}

var errNoCaptions = errors.New("no English captions")

// CaptionTranscriber downloads timed-text captions: manual English first,
// then auto-generated English.
type CaptionTranscriber struct {
	http    *core.HTTPClient
	baseURL string
}

func NewCaptionTranscriber(http *core.HTTPClient, baseURL string) *CaptionTranscriber {
	if baseURL == "" {
		baseURL = "https://video.google.com/timedtext"
	}
	return &CaptionTranscriber{http: http, baseURL: baseURL}
}

func (c *CaptionTranscriber) Transcribe(ctx context.Context, v Video) (Transcript, error) {
	var lastErr error = errNoCaptions
	for _, kind := range []string{"", "asr"} {
		q := url.Values{"lang": {"en"}, "v": {v.ID}}
		if kind != "" {
			q.Set("kind", kind)
		}
		raw, err := c.http.Fetch(ctx, c.baseURL+"?"+q.Encode(), nil)
		if err != nil {
			if ctx.Err() != nil {
				return Transcript{}, ctx.Err()
			}
			lastErr = err
			continue
		}
		text, err := parseTimedText(raw)
		if err != nil {
			lastErr = err
			continue
		}
		if text != "" {
			return Transcript{Text: text, Language: "en", Source: "captions"}, nil
		}
	}
	return Transcript{}, lastErr
}

type timedText struct {
	Lines []string `xml:"text"`
}

func parseTimedText(raw []byte) (string, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return "", nil
	}
	var tt timedText
	if err := xml.Unmarshal(raw, &tt); err != nil {
		return "", fmt.Errorf("parse captions: %w", err)
	}
	parts := make([]string, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		// captions are often escaped twice
		line = strings.TrimSpace(html.UnescapeString(line))
		if line != "" {
			parts = append(parts, strings.Join(strings.Fields(line), " "))
		}
	}
	return strings.Join(parts, " "), nil
}

// CommandRunner runs an external program. exec.CommandContext in production.
type CommandRunner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if len(msg) > 300 {
			msg = msg[len(msg)-300:]
		}
		return fmt.Errorf("%s: %w: %s", filepath.Base(name), err, msg)
	}
	return nil
}

// WhisperTranscriber downloads the audio track with yt-dlp and transcribes it
// with the whisper CLI. Transcription is CPU bound, so at most `workers` jobs
// run at once across all requests; waiting callers honour their context.
type WhisperTranscriber struct {
	ytdlp   string
	whisper string
	model   string
	sem     *semaphore.Weighted
	run     CommandRunner
}

func NewWhisperTranscriber(ytdlp, whisper, model string, workers int, run CommandRunner) *WhisperTranscriber {
	if workers <= 0 {
		workers = 1
	}
	if model == "" {
		model = "base"
	}
	if run == nil {
		run = execRunner
	}
	return &WhisperTranscriber{
		ytdlp:   ytdlp,
		whisper: whisper,
		model:   model,
		sem:     semaphore.NewWeighted(int64(workers)),
		run:     run,
	}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, v Video) (Transcript, error) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return Transcript{}, err
	}
	defer w.sem.Release(1)

	dir, err := os.MkdirTemp("", "yt_whisper_"+v.ID+"_")
	if err != nil {
		return Transcript{}, err
	}
	defer os.RemoveAll(dir)

	audio := filepath.Join(dir, "audio.mp3")
	if err := w.run(ctx, w.ytdlp, "-x", "--audio-format", "mp3", "--quiet", "-o", filepath.Join(dir, "audio.%(ext)s"), v.URL()); err != nil {
		return Transcript{}, fmt.Errorf("download audio: %w", err)
	}
	if err := w.run(ctx, w.whisper, audio, "--model", w.model, "--output_format", "json", "--output_dir", dir); err != nil {
		return Transcript{}, fmt.Errorf("transcribe: %w", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "audio.json"))
	if err != nil {
		return Transcript{}, fmt.Errorf("read whisper output: %w", err)
	}
	var out struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return Transcript{}, fmt.Errorf("parse whisper output: %w", err)
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return Transcript{}, errors.New("whisper returned empty text")
	}
	lang := out.Language
	if lang == "" {
		lang = "unknown"
	}
	return Transcript{Text: text, Language: lang, Source: "whisper"}, nil
}

// FallbackTranscriber tries captions first and whisper when they are missing.
type FallbackTranscriber struct {
	Primary  Transcriber
	Fallback Transcriber
}

func (f FallbackTranscriber) Transcribe(ctx context.Context, v Video) (Transcript, error) {
	t, err := f.Primary.Transcribe(ctx, v)
	if err == nil && t.Text != "" {
		return t, nil
	}
	if f.Fallback == nil || ctx.Err() != nil {
		return Transcript{}, err
	}
	ft, ferr := f.Fallback.Transcribe(ctx, v)
	if ferr == nil && ft.Text != "" {
		return ft, nil
	}
	if err != nil && ferr != nil {
		return Transcript{}, fmt.Errorf("%v | whisper: %v", err, ferr)
	}
	if ferr != nil {
		return Transcript{}, fmt.Errorf("whisper: %w", ferr)
	}
	return Transcript{}, err
}
