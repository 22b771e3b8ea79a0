package video

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Artifacts persists transcripts and per-run metadata under
// <root>/youtube/<run_id>/. A zero value (empty root) writes nothing.
type Artifacts struct {
	root string
}

func NewArtifacts(dataDir string) *Artifacts {
	if dataDir == "" {
		return &Artifacts{}
	}
	return &Artifacts{root: filepath.Join(dataDir, "youtube")}
}

// Record is one metadata.json entry.
type Record struct {
	Video            Video  `json:"video"`
	Language         string `json:"language"`
	Summary          string `json:"summary"`
	TranscriptPath   string `json:"transcript_path,omitempty"`
	TranscriptSource string `json:"transcript_source,omitempty"`
	TranscriptError  string `json:"transcript_error,omitempty"`
}

func (a *Artifacts) enabled() bool { return a != nil && a.root != "" }

// WriteTranscript stores text and returns its path, or "" when disabled.
func (a *Artifacts) WriteTranscript(runID, videoID, text string) (string, error) {
	if !a.enabled() {
		return "", nil
	}
	dir := filepath.Join(a.root, runID, "transcripts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, videoID+".txt")
	return path, os.WriteFile(path, []byte(text), 0o644)
}

// WriteMetadata stores records as indented JSON and returns the path.
func (a *Artifacts) WriteMetadata(runID string, records []Record) (string, error) {
	if !a.enabled() {
		return "", nil
	}
	dir := filepath.Join(a.root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if records == nil {
		records = []Record{}
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "metadata.json")
	return path, os.WriteFile(path, b, 0o644)
}
