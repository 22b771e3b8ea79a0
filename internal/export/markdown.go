// Package export renders finished research reports for download.
package export

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/researchdesk/internal/agent/core"
)

// Markdown renders a report. Empty sections still get their heading with a
// placeholder line so the document shape is stable.
func Markdown(res core.WorkflowResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Research Report: %s\n\n", oneLine(res.Query))
	var header []string
	if !res.Timestamp.IsZero() {
		header = append(header, "**Date:** "+res.Timestamp.Format("2006-01-02"))
	}
	if res.Domain != "" {
		header = append(header, "**Domain:** "+string(res.Domain))
	}
	if res.RunID != "" {
		header = append(header, "**Run:** "+res.RunID)
	}
	if len(header) > 0 {
		b.WriteString(strings.Join(header, "\n") + "\n\n")
	}

	if res.Error != "" {
		fmt.Fprintf(&b, "> **Error:** %s\n\n", oneLine(res.Error))
	}

	b.WriteString("## Summary\n\n")
	if s := strings.TrimSpace(res.Summary); s != "" {
		b.WriteString(s + "\n\n")
	} else {
		b.WriteString("_No summary available._\n\n")
	}

	bullets(&b, "Key Findings", res.KeyFindings, "_No key findings._")
	bullets(&b, "Insights", res.Insights, "_No insights._")

	b.WriteString("## Sources\n\n")
	srcs := res.Sources()
	if len(srcs) == 0 {
		b.WriteString("_No sources._\n\n")
	}
	for i, s := range srcs {
		title := oneLine(s.Title)
		if title == "" {
			title = "Untitled"
		}
		if s.URL != "" {
			fmt.Fprintf(&b, "%d. [%s](%s)", i+1, escapeLinkText(title), s.URL)
		} else {
			fmt.Fprintf(&b, "%d. %s", i+1, title)
		}
		var meta []string
		if s.Type != "" {
			meta = append(meta, string(s.Type))
		}
		if s.PublishedDate != "" {
			meta = append(meta, s.PublishedDate)
		}
		if len(meta) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(meta, ", "))
		}
		b.WriteString("\n")
		if i == len(srcs)-1 {
			b.WriteString("\n")
		}
	}

	b.WriteString("## Agents\n\n")
	if len(res.AgentResults) == 0 {
		b.WriteString("_No agents ran._\n\n")
	}
	for i, r := range res.AgentResults {
		if r.OK() {
			fmt.Fprintf(&b, "- **%s**: ok, %d sources, %d tokens, $%.4f\n", r.AgentName(), len(r.Sources()), r.Tokens(), r.Cost())
		} else {
			fmt.Fprintf(&b, "- **%s**: failed (%s)\n", r.AgentName(), oneLine(r.Err()))
		}
		if i == len(res.AgentResults)-1 {
			b.WriteString("\n")
		}
	}

	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "_Sources: %d | Tokens: %d | Cost: $%.4f | Time: %.2fs_\n",
		res.TotalSources, res.TotalTokens, res.TotalCost, res.ExecutionTime)
	return b.String()
}

func bullets(b *strings.Builder, heading string, items []string, empty string) {
	fmt.Fprintf(b, "## %s\n\n", heading)
	if len(items) == 0 {
		b.WriteString(empty + "\n\n")
		return
	}
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", oneLine(it))
	}
	b.WriteString("\n")
}

func oneLine(s string) string { return strings.Join(strings.Fields(s), " ") }

var linkText = strings.NewReplacer("[", `\[`, "]", `\]`)

func escapeLinkText(s string) string { return linkText.Replace(s) }

// Filename is a download name such as research_report_20250301_0930.md.
func Filename(res core.WorkflowResult) string {
	return "research_report_" + res.Timestamp.Format("20060102_1504") + ".md"
}
