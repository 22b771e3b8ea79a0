package deepsearch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const structuredAnswer = `## Executive Summary
Quantum error correction crossed the break-even point in 2024. Several labs reported logical qubits outperforming physical ones.

## Key Findings
- Google demonstrated below-threshold surface code memory on Willow
- IBM published a roadmap towards fault tolerant modules by 2029
* Short bullet
1. Neutral atom arrays scaled past one thousand physical qubits
2. Error rates dropped by an order of magnitude across platforms

## Detailed Analysis
Long analysis text.

## Insights:
- Hardware diversity reduces single-vendor risk for adopters
- Software stacks are becoming the bottleneck for useful workloads
`

func TestExtractSections_Markers(t *testing.T) {
	s := ExtractSections(structuredAnswer)

	assert.Equal(t, "Quantum error correction crossed the break-even point in 2024. Several labs reported logical qubits outperforming physical ones.", s.Summary)
	assert.Equal(t, []string{
		"Google demonstrated below-threshold surface code memory on Willow",
		"IBM published a roadmap towards fault tolerant modules by 2029",
		"Neutral atom arrays scaled past one thousand physical qubits",
		"Error rates dropped by an order of magnitude across platforms",
		// the scan window runs past the next header
		"Hardware diversity reduces single-vendor risk for adopters",
	}, s.Findings)
	assert.Equal(t, []string{
		"Hardware diversity reduces single-vendor risk for adopters",
		"Software stacks are becoming the bottleneck for useful workloads",
	}, s.Insights)
	assert.Equal(t, structuredAnswer, s.Analysis)
}

func TestExtractSections_SummaryStopsAtKeyFinding(t *testing.T) {
	s := ExtractSections("Overview: markets rallied on rate cut hopes. Key findings follow below")
	assert.Equal(t, "markets rallied on rate cut hopes.", s.Summary)
}

func TestExtractSections_SummaryWindow(t *testing.T) {
	long := "Summary: " + strings.Repeat("é", 800)
	s := ExtractSections(long)
	assert.Equal(t, 500, len([]rune(s.Summary)))
}

func TestExtractSections_FindingsLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("Findings:\n")
	for i := 0; i < 8; i++ {
		b.WriteString("- this finding line is clearly long enough\n")
	}
	s := ExtractSections(b.String())
	assert.Len(t, s.Findings, 5)
}

func TestExtractSections_Fallbacks(t *testing.T) {
	content := "Solid state batteries promise higher energy density than lithium ion cells. " +
		"Toyota plans production in 2027. " +
		"Several startups are racing to commercialize sulfide electrolytes at scale. " +
		"Costs remain high"
	s := ExtractSections(content)

	assert.Equal(t, "Solid state batteries promise higher energy density than lithium ion cells. Toyota plans production in 2027. Several startups are racing to commercialize sulfide electrolytes at scale.", s.Summary)
	require.Len(t, s.Findings, 2)
	assert.Equal(t, "Solid state batteries promise higher energy density than lithium ion cells", s.Findings[0])
	assert.Empty(t, s.Insights)
}

func TestExtractSections_Empty(t *testing.T) {
	s := ExtractSections("   ")
	assert.Empty(t, s.Summary)
	assert.Empty(t, s.Findings)
	assert.Empty(t, s.Insights)
}

func TestSystemPrompt(t *testing.T) {
	assert.Contains(t, SystemPrompt("stocks"), "Stock performance")
	assert.Contains(t, SystemPrompt("medical"), "Clinical trials")
	assert.Equal(t, basePrompt, SystemPrompt("general"))
}
