// Package evaluator asks each department for a structured opinion about a ticket.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zen-systems/triage/pkg/adapter"
	"github.com/zen-systems/triage/pkg/schema"
)

const (
	// DefaultTimeout bounds a single evaluator call; a call that runs over abstains.
	DefaultTimeout = 30 * time.Second
	// DefaultPrecedentLimit is how many similar tickets are shown to an evaluator.
	DefaultPrecedentLimit = 5
	// MaxPrecedentLimit is the most precedent tickets a prompt may carry.
	MaxPrecedentLimit = 5

	noPrecedent = "No precedent found in this department."
)

const systemPrompt = `You evaluate help-desk tickets on behalf of one department.
Judge how strongly the ticket belongs to your department and how sure you are.
Return ONLY JSON matching this schema:
{"interest_level": 0-100, "confidence_score": 0-100, "rationale": "...",
 "suggested_priority": "low|medium|high|critical", "recommended_tags": ["..."],
 "estimated_resolution_time": "..."}`

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTimeout sets the per-call deadline. Non-positive values disable it.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) { e.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithPrecedentLimit caps the precedent tickets included in the prompt, never above
// MaxPrecedentLimit.
func WithPrecedentLimit(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.precedentLimit = min(n, MaxPrecedentLimit)
		}
	}
}

// Evaluator produces one department's opinion. The same instance serves every department;
// only the injected profile differs.
type Evaluator struct {
	adapter        adapter.Adapter
	model          string
	timeout        time.Duration
	precedentLimit int
	logger         *slog.Logger
}

// New creates an evaluator backed by a completion adapter.
func New(a adapter.Adapter, model string, opts ...Option) *Evaluator {
	e := &Evaluator{
		adapter:        a,
		model:          model,
		timeout:        DefaultTimeout,
		precedentLimit: DefaultPrecedentLimit,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate asks the model for dept's opinion of ticket. Any error means the department
// abstains.
func (e *Evaluator) Evaluate(ctx context.Context, dept schema.Department, ticket schema.Ticket, precedent []schema.Ticket) (*schema.Evaluation, error) {
	if e.adapter == nil {
		return nil, fmt.Errorf("no completion adapter configured")
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.adapter.Complete(ctx, adapter.Request{
		Model:  e.model,
		System: systemPrompt,
		Prompt: e.buildPrompt(dept, ticket, precedent),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", dept.Name, err)
	}
	eval, err := parseEvaluation(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", dept.Name, err)
	}
	eval.DepartmentID = dept.ID
	eval.DepartmentName = dept.Name
	return eval, nil
}

func (e *Evaluator) buildPrompt(dept schema.Department, ticket schema.Ticket, precedent []schema.Ticket) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Department: %s\n", dept.Name))
	if desc := strings.TrimSpace(dept.Description); desc != "" {
		sb.WriteString(fmt.Sprintf("Responsibilities: %s\n", desc))
	}

	sb.WriteString("\nTicket:\n")
	sb.WriteString(fmt.Sprintf("Title: %s\n", ticket.Title))
	sb.WriteString(fmt.Sprintf("Description: %s\n", ticket.Description))
	if ticket.Category != "" {
		sb.WriteString(fmt.Sprintf("Category: %s\n", ticket.Category))
	}
	if ticket.Priority != "" {
		sb.WriteString(fmt.Sprintf("Reported priority: %s\n", ticket.Priority))
	}

	sb.WriteString("\nSimilar tickets previously handled by this department:\n")
	if len(precedent) == 0 {
		sb.WriteString(noPrecedent + "\n")
	}
	for i, p := range precedent {
		if i == e.precedentLimit {
			break
		}
		sb.WriteString(fmt.Sprintf("%d. %s (status: %s, priority: %s)\n   %s\n", i+1, p.Title, p.Status, p.Priority, truncate(p.Description, 300)))
	}
	return sb.String()
}

type evaluationPayload struct {
	InterestLevel           *schema.FlexInt `json:"interest_level"`
	ConfidenceScore         *schema.FlexInt `json:"confidence_score"`
	Rationale               string          `json:"rationale"`
	SuggestedPriority       string          `json:"suggested_priority"`
	RecommendedTags         []string        `json:"recommended_tags"`
	EstimatedResolutionTime string          `json:"estimated_resolution_time"`
}

func parseEvaluation(content string) (*schema.Evaluation, error) {
	var p evaluationPayload
	if err := schema.DecodeJSON(content, &p); err != nil {
		return nil, err
	}
	if p.InterestLevel == nil || p.ConfidenceScore == nil {
		return nil, fmt.Errorf("missing interest_level or confidence_score")
	}
	return &schema.Evaluation{
		InterestLevel:           schema.ClampScore(int(*p.InterestLevel)),
		ConfidenceScore:         schema.ClampScore(int(*p.ConfidenceScore)),
		Rationale:               strings.TrimSpace(p.Rationale),
		SuggestedPriority:       schema.NormalizePriority(p.SuggestedPriority),
		RecommendedTags:         schema.CleanTags(p.RecommendedTags),
		EstimatedResolutionTime: strings.TrimSpace(p.EstimatedResolutionTime),
	}, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
