package answer

import (
	"fmt"
	"strings"

	"schemeadvisor/internal/domain"
)

// NotFoundText is the exact marker the generator is instructed to emit when
// the evidence does not cover the question.
const NotFoundText = "NOT FOUND"

// buildPrompt assembles the grounded prompt: strict evidence-only rules, the
// user's question, and each passage tagged with its citation key.
func buildPrompt(question string, evidence []domain.Passage) string {
	var sb strings.Builder
	sb.WriteString("You are an India government scheme advisor for Andhra Pradesh and Telangana.\n\n")
	sb.WriteString("CRITICAL RULES:\n")
	sb.WriteString("- Use ONLY the evidence below for factual claims.\n")
	sb.WriteString("- Do NOT invent amounts, thresholds, eligibility rules.\n")
	sb.WriteString("- If evidence does not support the query, output ONLY: " + NotFoundText + "\n")
	sb.WriteString("- DO NOT generate any links unless explicitly present in evidence.\n\n")
	sb.WriteString("Question:\n")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\nEvidence:\n")
	for i, p := range evidence {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(renderCitation(p.Chunk))
		sb.WriteString("\n")
		sb.WriteString(p.Text)
	}
	sb.WriteString("\n\nOutput format (short and clean):\n\n")
	sb.WriteString("1) Scheme / Topic\n")
	sb.WriteString("2) Eligibility: Eligible / Maybe / Not sure + reason\n")
	sb.WriteString("3) Benefits (if supported)\n")
	sb.WriteString("4) Citations: [file | page]\n\n")
	sb.WriteString("If insufficient evidence, output ONLY: " + NotFoundText + "\n")
	return sb.String()
}

func renderCitation(c domain.Chunk) string {
	return fmt.Sprintf("[%s | page %d]", c.FileName, c.Page)
}
