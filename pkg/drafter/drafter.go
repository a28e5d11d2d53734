// Package drafter writes candidate replies for agents and vets each one before returning it.
package drafter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zen-systems/triage/pkg/adapter"
	"github.com/zen-systems/triage/pkg/embedding"
	"github.com/zen-systems/triage/pkg/gate"
	"github.com/zen-systems/triage/pkg/repair"
	"github.com/zen-systems/triage/pkg/schema"
	"github.com/zen-systems/triage/pkg/vectorstore"
)

const (
	// DefaultMaxAttempts is used when the caller passes a non-positive attempt budget.
	DefaultMaxAttempts = 3
	// DefaultExampleLimit is how many resolved tickets are shown as worked examples.
	DefaultExampleLimit = 3

	improvementBonus   = 5
	fallbackConfidence = 20
	fallbackTag        = "needs-review"
)

// ErrEmptyDepartment is returned when no department name is given.
var ErrEmptyDepartment = errors.New("empty department name")

const drafterSystemPrompt = `You draft replies to help-desk tickets for a support agent to review.
Follow the department guidance exactly and use the worked examples for the usual fix when they apply.
Return ONLY JSON: {"response": "...", "confidence": 0-100, "reasoning": "...",
"suggested_status": "open|in_progress|resolved|closed", "suggested_tags": ["..."]}`

// Option configures a Drafter.
type Option func(*Drafter)

// WithExamples enables worked examples from the vector store.
func WithExamples(store *vectorstore.Store, emb *embedding.Generator, limit int) Option {
	return func(d *Drafter) {
		d.store = store
		d.embedder = emb
		if limit > 0 {
			d.exampleLimit = limit
		}
	}
}

// WithToneRules replaces the tone table.
func WithToneRules(rules ToneRules) Option {
	return func(d *Drafter) {
		if len(rules) > 0 {
			d.tones = rules
		}
	}
}

// WithGates runs local checks on every candidate before the validator sees it. A candidate
// that fails a gate is regenerated with the gate feedback and costs no validator call.
func WithGates(gates ...gate.Gate) Option {
	return func(d *Drafter) { d.gates = append(d.gates, gates...) }
}

// WithTimeout sets the per-generation deadline.
func WithTimeout(t time.Duration) Option {
	return func(d *Drafter) { d.timeout = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Drafter) {
		if l != nil {
			d.logger = l
		}
	}
}

// Drafter generates and validates replies.
type Drafter struct {
	adapter      adapter.Adapter
	model        string
	validator    *Validator
	store        *vectorstore.Store
	embedder     *embedding.Generator
	tones        ToneRules
	gates        []gate.Gate
	exampleLimit int
	timeout      time.Duration
	logger       *slog.Logger
}

// New creates a drafter.
func New(a adapter.Adapter, model string, validator *Validator, opts ...Option) *Drafter {
	d := &Drafter{
		adapter:      a,
		model:        model,
		validator:    validator,
		tones:        DefaultToneRules(),
		exampleLimit: DefaultExampleLimit,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Draft returns a validated reply, an improvement the validator offered, or the safe
// fallback. It makes at most maxAttempts generation calls and fails only on bad input.
func (d *Drafter) Draft(ctx context.Context, ticket schema.Ticket, department string, maxAttempts int) (schema.DraftResponse, error) {
	if err := ticket.Validate(); err != nil {
		return schema.DraftResponse{}, err
	}
	department = strings.TrimSpace(department)
	if department == "" {
		return schema.DraftResponse{}, ErrEmptyDepartment
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	base := d.buildPrompt(ticket, department, d.examples(ctx, ticket, department))
	prompt := base
	var lastText string
	retryWith := func(text string, verdict schema.ValidationVerdict) {
		if text == lastText {
			prompt = base + "\n\n" + repair.DraftEscalationPrompt(text, verdict)
		} else {
			prompt = base + "\n\n" + repair.DraftRepairPrompt(text, verdict)
		}
		lastText = text
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		candidate, err := d.generate(ctx, prompt)
		if err != nil {
			d.logger.Warn("draft generation failed",
				slog.String("ticket", ticket.ID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			continue
		}
		candidate.Attempts = attempt

		if len(d.gates) > 0 {
			if res := gate.Run(candidate.Text, d.gates...); !res.Passed {
				d.logger.Info("draft failed local checks",
					slog.String("ticket", ticket.ID),
					slog.Int("attempt", attempt),
					slog.Int("violations", len(res.Violations)),
				)
				retryWith(candidate.Text, schema.ValidationVerdict{Feedback: res.Feedback()})
				continue
			}
		}

		if d.validator == nil {
			d.logger.Warn("no validator configured, draft cannot be accepted", slog.String("ticket", ticket.ID))
			break
		}
		verdict, err := d.validator.Validate(ctx, ticket, candidate.Text)
		if err != nil {
			d.logger.Warn("draft validation failed",
				slog.String("ticket", ticket.ID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			continue
		}

		if verdict.IsValid {
			d.logger.Info("draft accepted", slog.String("ticket", ticket.ID), slog.Int("attempt", attempt))
			return candidate, nil
		}
		if verdict.ImprovedText != "" {
			candidate.Text = verdict.ImprovedText
			candidate.Confidence = schema.ClampScore(candidate.Confidence + improvementBonus)
			if verdict.Feedback != "" {
				candidate.Reasoning = strings.TrimSpace(candidate.Reasoning + " Reviewer: " + verdict.Feedback)
			}
			d.logger.Info("validator improvement adopted", slog.String("ticket", ticket.ID), slog.Int("attempt", attempt))
			return candidate, nil
		}

		retryWith(candidate.Text, verdict)
	}

	d.logger.Warn("draft budget exhausted, returning safe fallback",
		slog.String("ticket", ticket.ID),
		slog.Int("max_attempts", maxAttempts),
	)
	return safeFallback(ticket, department, maxAttempts), nil
}

type draftPayload struct {
	Response        string          `json:"response"`
	Confidence      *schema.FlexInt `json:"confidence"`
	Reasoning       string          `json:"reasoning"`
	SuggestedStatus string          `json:"suggested_status"`
	SuggestedTags   []string        `json:"suggested_tags"`
}

func (d *Drafter) generate(ctx context.Context, prompt string) (schema.DraftResponse, error) {
	if d.adapter == nil {
		return schema.DraftResponse{}, fmt.Errorf("no drafting adapter configured")
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	resp, err := d.adapter.Complete(ctx, adapter.Request{
		Model:  d.model,
		System: drafterSystemPrompt,
		Prompt: prompt,
		JSON:   true,
	})
	if err != nil {
		return schema.DraftResponse{}, fmt.Errorf("drafter call: %w", err)
	}

	var p draftPayload
	if err := schema.DecodeJSON(resp.Content, &p); err != nil {
		return schema.DraftResponse{}, fmt.Errorf("drafter response invalid: %w", err)
	}
	text := strings.TrimSpace(p.Response)
	if text == "" {
		return schema.DraftResponse{}, fmt.Errorf("drafter response invalid: empty response")
	}
	confidence := 50
	if p.Confidence != nil {
		confidence = int(*p.Confidence)
	}
	return schema.DraftResponse{
		Text:            text,
		Confidence:      schema.ClampScore(confidence),
		Reasoning:       strings.TrimSpace(p.Reasoning),
		SuggestedStatus: schema.NormalizeStatus(p.SuggestedStatus),
		SuggestedTags:   schema.CleanTags(p.SuggestedTags),
	}, nil
}

// examples returns resolved or closed tickets of the department most similar to ticket.
func (d *Drafter) examples(ctx context.Context, ticket schema.Ticket, department string) []schema.Ticket {
	if d.store == nil || d.embedder == nil {
		return nil
	}
	vec, err := d.embedder.Embed(ctx, embedding.TicketText(ticket))
	if err != nil {
		return nil
	}
	owner := schema.Department{Name: department}
	if ticket.DepartmentID != "" && (ticket.DepartmentName == "" || strings.EqualFold(strings.TrimSpace(ticket.DepartmentName), strings.TrimSpace(department))) {
		owner.ID = ticket.DepartmentID
	}
	matches, err := d.store.Query(ctx, vec, vectorstore.Filter{
		Owner:       owner,
		Statuses:    []schema.Status{schema.StatusResolved, schema.StatusClosed},
		ExcludeKeys: []string{ticket.ID},
	}, d.exampleLimit)
	if err != nil {
		d.logger.Warn("worked examples unavailable", slog.String("error", err.Error()))
		return nil
	}
	out := make([]schema.Ticket, len(matches))
	for i, m := range matches {
		out[i] = m.Record.Metadata
	}
	return out
}

func (d *Drafter) buildPrompt(ticket schema.Ticket, department string, examples []schema.Ticket) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Department: %s\n", department))
	sb.WriteString(fmt.Sprintf("Guidance: %s\n", d.tones.For(department)))

	sb.WriteString("\nTicket:\n")
	sb.WriteString(fmt.Sprintf("Title: %s\n", ticket.Title))
	sb.WriteString(fmt.Sprintf("Description: %s\n", ticket.Description))
	if ticket.RequesterName != "" {
		sb.WriteString(fmt.Sprintf("Requester: %s\n", ticket.RequesterName))
	}
	if ticket.Priority != "" {
		sb.WriteString(fmt.Sprintf("Priority: %s\n", ticket.Priority))
	}

	if len(examples) > 0 {
		sb.WriteString("\nResolved tickets from this department:\n")
		for i, ex := range examples {
			sb.WriteString(fmt.Sprintf("%d. %s\n   %s\n", i+1, ex.Title, ex.Description))
		}
	}
	return sb.String()
}

func safeFallback(ticket schema.Ticket, department string, attempts int) schema.DraftResponse {
	return schema.DraftResponse{
		Text: fmt.Sprintf("Thank you for contacting %s. We have received your request about %q and a member of the team will review it and follow up with you shortly.",
			department, strings.TrimSpace(ticket.Title)),
		Confidence:      fallbackConfidence,
		Reasoning:       "no draft passed review within the attempt budget",
		SuggestedStatus: schema.StatusInProgress,
		SuggestedTags:   []string{fallbackTag},
		Attempts:        attempts,
		Fallback:        true,
	}
}
