package deepsearch

import (
	"strings"
	"unicode/utf8"
)

// Sections is the structure recovered from a free-form research answer.
type Sections struct {
	Summary  string
	Findings []string
	Insights []string
	Analysis string
}

var (
	summaryMarkers    = []string{"executive summary", "summary:", "overview:"}
	summaryDelimiters = []string{"\n\n", "key finding", "analysis:"}
	findingMarkers    = []string{"key finding", "findings:", "main points:"}
	insightMarkers    = []string{"insights:", "key insights", "observations:"}
	findingPrefixes   = []string{"-", "•", "*", "1.", "2.", "3.", "4.", "5."}
	insightPrefixes   = []string{"-", "•", "*", "1.", "2.", "3.", "4."}
)

const (
	summaryWindow    = 500
	findingScanLines = 15
	maxFindings      = 5
	insightScanLines = 10
	maxInsights      = 4
	minItemLength    = 20
	minSentenceLen   = 40
	bulletCutset     = "-•*0123456789. "
)

// ExtractSections splits an LLM answer into summary, findings and insights by
// looking for section markers. Markers match case-insensitively and the first
// marker found wins.
//
// Fallbacks when a section is missing:
//   - summary: the first three ". " separated sentences, terminated with a period
//   - findings: sentences longer than 40 characters, at most five
//
// Insights have no fallback.
func ExtractSections(content string) Sections {
	s := Sections{Analysis: content}
	if strings.TrimSpace(content) == "" {
		return s
	}

	s.Summary = extractSummary(content)
	s.Findings = extractItems(content, findingMarkers, findingPrefixes, findingScanLines, maxFindings)
	s.Insights = extractItems(content, insightMarkers, insightPrefixes, insightScanLines, maxInsights)

	if s.Summary == "" {
		sentences := strings.Split(content, ". ")
		if len(sentences) > 3 {
			sentences = sentences[:3]
		}
		joined := strings.TrimSpace(strings.Join(sentences, ". "))
		s.Summary = strings.TrimSuffix(joined, ".") + "."
	}
	if len(s.Findings) == 0 {
		for _, sentence := range strings.Split(content, ". ") {
			sentence = strings.TrimSpace(sentence)
			if utf8.RuneCountInString(sentence) > minSentenceLen {
				s.Findings = append(s.Findings, sentence)
			}
			if len(s.Findings) == maxFindings {
				break
			}
		}
	}
	return s
}

func extractSummary(content string) string {
	for _, marker := range summaryMarkers {
		idx := indexFold(content, marker)
		if idx < 0 {
			continue
		}
		text := strings.TrimSpace(content[idx+len(marker):])
		text = strings.TrimSpace(strings.TrimLeft(text, ":*#"))
		window := truncateRunes(text, summaryWindow)
		end := len(window)
		for _, delim := range summaryDelimiters {
			if pos := indexFold(window, delim); pos > 0 {
				end = pos
				break
			}
		}
		return strings.TrimSpace(window[:end])
	}
	return ""
}

func extractItems(content string, markers, prefixes []string, scan, limit int) []string {
	for _, marker := range markers {
		idx := indexFold(content, marker)
		if idx < 0 {
			continue
		}
		var items []string
		lines := strings.Split(strings.TrimSpace(content[idx:]), "\n")
		for i, line := range lines {
			if i >= scan {
				break
			}
			line = strings.TrimSpace(line)
			if line != "" && hasAnyPrefix(line, prefixes) {
				item := strings.TrimSpace(strings.TrimLeft(line, bulletCutset))
				if utf8.RuneCountInString(item) > minItemLength {
					items = append(items, item)
				}
			}
			if len(items) >= limit {
				break
			}
		}
		return items
	}
	return nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// indexFold is strings.Index with ASCII case folding. Offsets refer to s.
func indexFold(s, substr string) int {
	n := len(substr)
	for i := 0; i+n <= len(s); i++ {
		if strings.EqualFold(s[i:i+n], substr) {
			return i
		}
	}
	return -1
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
