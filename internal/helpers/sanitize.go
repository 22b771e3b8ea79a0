package helpers

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

var (
	tagPattern        = regexp.MustCompile(`<[/!]?[A-Za-z][^<>]*>`)
	boldStarPattern   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	boldUnderPattern  = regexp.MustCompile(`__([^_]+)__`)
	emStarPattern     = regexp.MustCompile(`\*([^*]+)\*`)
	emUnderPattern    = regexp.MustCompile(`\b_([^_]+)_\b`)
	disallowedPattern = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s.,!?;:()\-'"]`)
)

// maxCleanPasses bounds the fixpoint loop in CleanText. Every pass after the
// first only removes characters, so real inputs settle in two or three passes.
const maxCleanPasses = 64

// StrictHTMLPolicy returns a singleton bluemonday policy that strips every HTML
// element and attribute.
func StrictHTMLPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// SanitizeHTMLStrict removes every HTML element from s and returns plain,
// unescaped text. A '<' that does not open a complete tag is text, not markup.
func SanitizeHTMLStrict(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = StrictHTMLPolicy().Sanitize(escapeStrayLT(s))
	return strings.TrimSpace(html.UnescapeString(s))
}

// escapeStrayLT escapes every '<' outside a complete tag so the HTML parser
// cannot swallow the rest of the input as an unterminated element.
func escapeStrayLT(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	tags := tagPattern.FindAllStringIndex(s, -1)
	var b strings.Builder
	b.Grow(len(s))
	next := 0
	for i := 0; i < len(s); i++ {
		for next < len(tags) && tags[next][1] <= i {
			next++
		}
		if s[i] == '<' && (next == len(tags) || tags[next][0] != i) {
			b.WriteString("&lt;")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// CleanText turns a third-party text fragment into plain report text: markup
// tags and emphasis markers are removed, whitespace runs collapse to a single
// space and characters outside letters, digits, whitespace and .,!?;:()-'" are
// dropped. CleanText(CleanText(s)) == CleanText(s) for every s.
func CleanText(s string) string {
	cur := strings.TrimSpace(s)
	for i := 0; i < maxCleanPasses && cur != ""; i++ {
		next := cleanOnce(cur)
		if next == cur {
			break
		}
		cur = next
	}
	return cur
}

func cleanOnce(s string) string {
	s = SanitizeHTMLStrict(s)
	// entity-escaped markup surfaces only after unescaping
	s = tagPattern.ReplaceAllString(s, "")
	s = collapseSpaces(s)
	s = boldStarPattern.ReplaceAllString(s, "$1")
	s = boldUnderPattern.ReplaceAllString(s, "$1")
	s = emStarPattern.ReplaceAllString(s, "$1")
	s = emUnderPattern.ReplaceAllString(s, "$1")
	s = disallowedPattern.ReplaceAllString(s, "")
	return collapseSpaces(s)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CleanList cleans every item, drops the ones that end up empty and removes
// duplicates by cleaned value, keeping the first occurrence.
func CleanList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		cleaned := CleanText(item)
		if cleaned == "" {
			continue
		}
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		out = append(out, cleaned)
	}
	return out
}
