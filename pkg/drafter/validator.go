package drafter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zen-systems/triage/pkg/adapter"
	"github.com/zen-systems/triage/pkg/schema"
)

const validatorSystemPrompt = `You review draft replies to help-desk tickets before an agent sends them.
Check accuracy, completeness, tone, clarity and specificity against the ticket.
Return ONLY JSON: {"is_valid": true|false, "feedback": "...", "improved_text": "optional corrected reply"}`

// Validator critiques one candidate reply.
type Validator struct {
	adapter adapter.Adapter
	model   string
	timeout time.Duration
}

// NewValidator creates a validator. A non-positive timeout disables the deadline.
func NewValidator(a adapter.Adapter, model string, timeout time.Duration) *Validator {
	return &Validator{adapter: a, model: model, timeout: timeout}
}

type verdictPayload struct {
	IsValid      *bool  `json:"is_valid"`
	Feedback     string `json:"feedback"`
	ImprovedText string `json:"improved_text"`
}

// Validate returns the verdict on text as a reply to ticket.
func (v *Validator) Validate(ctx context.Context, ticket schema.Ticket, text string) (schema.ValidationVerdict, error) {
	if v.adapter == nil {
		return schema.ValidationVerdict{}, fmt.Errorf("no validator adapter configured")
	}
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	var sb strings.Builder
	sb.WriteString("Ticket:\n")
	sb.WriteString(fmt.Sprintf("Title: %s\n", ticket.Title))
	sb.WriteString(fmt.Sprintf("Description: %s\n", ticket.Description))
	sb.WriteString("\nDraft reply:\n---\n")
	sb.WriteString(text)
	sb.WriteString("\n---\n")

	resp, err := v.adapter.Complete(ctx, adapter.Request{
		Model:  v.model,
		System: validatorSystemPrompt,
		Prompt: sb.String(),
		JSON:   true,
	})
	if err != nil {
		return schema.ValidationVerdict{}, fmt.Errorf("validator call: %w", err)
	}

	var p verdictPayload
	if err := schema.DecodeJSON(resp.Content, &p); err != nil {
		return schema.ValidationVerdict{}, fmt.Errorf("validator response invalid: %w", err)
	}
	if p.IsValid == nil {
		return schema.ValidationVerdict{}, fmt.Errorf("validator response invalid: missing is_valid")
	}
	return schema.ValidationVerdict{
		IsValid:      *p.IsValid,
		Feedback:     strings.TrimSpace(p.Feedback),
		ImprovedText: strings.TrimSpace(p.ImprovedText),
	}, nil
}
