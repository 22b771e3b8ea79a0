package deepsearch

import "github.com/mohammad-safakhou/researchdesk/internal/agent/core"

const basePrompt = `You are an expert research analyst. Provide comprehensive, well-structured analysis with:

1. EXECUTIVE SUMMARY (2-3 sentences)
2. KEY FINDINGS (3-5 specific bullet points)
3. DETAILED ANALYSIS (comprehensive evaluation)
4. INSIGHTS (2-4 strategic observations)

Format your response with clear section headers.`

var domainFocus = map[core.Domain]string{
	core.DomainStocks:     "Focus on: Stock performance, financial metrics, analyst ratings, market trends, earnings, and investment outlook.",
	core.DomainMedical:    "Focus on: Clinical trials, peer-reviewed studies, treatment efficacy, safety data, and regulatory status.",
	core.DomainAcademic:   "Focus on: Scholarly research, peer-reviewed papers, citations, methodologies, and academic discourse.",
	core.DomainTechnology: "Focus on: Technology developments, product launches, innovations, market impact, and technical specifications.",
}

// SystemPrompt returns the system prompt for a domain.
func SystemPrompt(d core.Domain) string {
	if focus, ok := domainFocus[d]; ok {
		return basePrompt + "\n\n" + focus
	}
	return basePrompt
}
