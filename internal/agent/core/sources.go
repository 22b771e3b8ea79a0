package core

import (
	"strings"

	"github.com/mohammad-safakhou/researchdesk/internal/helpers"
)

// DeduplicateSources merges sources by canonical URL (or lowercased title
// when the URL is empty) keeping the first occurrence, upgraded to the
// highest confidence seen for that key. Order of first appearance is kept.
func DeduplicateSources(in []Source) []Source {
	index := make(map[string]int, len(in))
	out := make([]Source, 0, len(in))
	for _, s := range in {
		k := sourceKey(s.URL)
		if k == "" {
			k = strings.ToLower(strings.TrimSpace(s.Title))
		}
		if k == "" {
			out = append(out, s)
			continue
		}
		if i, ok := index[k]; ok {
			if s.Confidence > out[i].Confidence {
				out[i].Confidence = s.Confidence
			}
			continue
		}
		index[k] = len(out)
		out = append(out, s)
	}
	return out
}

func sourceKey(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	if c, err := helpers.CanonicalURL(raw); err == nil {
		return c
	}
	return raw
}
