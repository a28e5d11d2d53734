package repair

import (
	"strings"
	"testing"

	"github.com/zen-systems/triage/pkg/schema"
)

func TestDraftRepairPromptIncludesFeedback(t *testing.T) {
	verdict := schema.ValidationVerdict{Feedback: "- Missing reset steps\n* Tone too curt\n\n"}
	prompt := DraftRepairPrompt("Try again later.", verdict)

	if !strings.Contains(prompt, "Try again later.") {
		t.Fatalf("missing previous draft")
	}
	if !strings.Contains(prompt, "- Missing reset steps\n- Tone too curt\n") {
		t.Fatalf("feedback not normalized into bullets:\n%s", prompt)
	}
}

func TestDraftRepairPromptWithoutFeedback(t *testing.T) {
	prompt := DraftRepairPrompt("draft", schema.ValidationVerdict{})
	if !strings.Contains(prompt, "no specific feedback") {
		t.Fatalf("expected placeholder feedback line")
	}
}

func TestDraftEscalationPromptWarnsAboutRepeats(t *testing.T) {
	prompt := DraftEscalationPrompt("same draft", schema.ValidationVerdict{Feedback: "vague"})
	if !strings.Contains(prompt, "Do NOT repeat the previous reply") {
		t.Fatalf("missing repeat warning")
	}
	if !strings.Contains(prompt, "- vague") {
		t.Fatalf("missing feedback")
	}
}
