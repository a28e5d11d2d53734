// Package repair builds the follow-up prompts used when a draft fails validation.
package repair

import (
	"strings"

	"github.com/zen-systems/triage/pkg/schema"
)

// DraftRepairPrompt asks for a new draft that addresses the validator's feedback.
func DraftRepairPrompt(previous string, verdict schema.ValidationVerdict) string {
	var sb strings.Builder

	sb.WriteString("The following draft reply failed review:\n\n")
	sb.WriteString("---\n")
	sb.WriteString(strings.TrimSpace(previous))
	sb.WriteString("\n---\n\n")

	sb.WriteString("Reviewer feedback:\n")
	writeFeedback(&sb, verdict.Feedback)

	sb.WriteString("\nWrite a new reply that fixes every issue above. Keep what was correct.")

	return sb.String()
}

// DraftEscalationPrompt is used when a regenerated draft repeats the rejected one.
func DraftEscalationPrompt(previous string, verdict schema.ValidationVerdict) string {
	var sb strings.Builder

	sb.WriteString("The previous drafts are repeating and failed review.\n")
	sb.WriteString("Do NOT repeat the previous reply; restructure it and change the wording.\n\n")

	sb.WriteString("Reviewer feedback:\n")
	writeFeedback(&sb, verdict.Feedback)

	sb.WriteString("\nPrevious reply:\n---\n")
	sb.WriteString(strings.TrimSpace(previous))
	sb.WriteString("\n---\n")
	sb.WriteString("\nProvide a different reply that addresses the feedback above.\n")

	return sb.String()
}

func writeFeedback(sb *strings.Builder, feedback string) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		sb.WriteString("- (no specific feedback given; improve accuracy, completeness and tone)\n")
		return
	}
	for _, line := range strings.Split(feedback, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*"))
		if line == "" {
			continue
		}
		sb.WriteString("- ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}
