// Package router turns department opinions into a single routing decision.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zen-systems/triage/pkg/adapter"
	"github.com/zen-systems/triage/pkg/schema"
)

// ErrNoDepartments is returned when there is no department a decision could point at.
var ErrNoDepartments = errors.New("no valid departments")

const (
	defaultConfidence = 30
	// DefaultTimeout bounds the arbitration call.
	DefaultTimeout = 30 * time.Second
)

var defaultTags = []string{"auto-assigned", "requires-review"}

const arbiterSystemPrompt = `You are the arbiter of a help-desk routing panel.
Each department has rated a ticket with an interest level and a confidence score.
Prefer the department whose interest AND confidence are both high; a high value in only one is weak evidence.
Return ONLY JSON: {"department": "<exact department name>", "reason": "...", "confidence": 0-100,
"priority": "low|medium|high|critical", "tags": ["..."], "estimated_resolution_time": "..."}`

// ArbiterOption configures an Arbiter.
type ArbiterOption func(*Arbiter)

// WithModel sets the arbitration model.
func WithModel(model string) ArbiterOption {
	return func(a *Arbiter) { a.model = model }
}

// WithIDScheme sets the identifier validator. Defaults to schema.UUIDScheme.
func WithIDScheme(scheme schema.IDScheme) ArbiterOption {
	return func(a *Arbiter) {
		if scheme != nil {
			a.scheme = scheme
		}
	}
}

// WithTimeout sets the arbitration call deadline. Non-positive values disable it.
func WithTimeout(d time.Duration) ArbiterOption {
	return func(a *Arbiter) { a.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ArbiterOption {
	return func(a *Arbiter) {
		if l != nil {
			a.logger = l
		}
	}
}

// Arbiter aggregates evaluations into one decision. A nil adapter disables the model path.
type Arbiter struct {
	adapter           adapter.Adapter
	model             string
	defaultDepartment string
	scheme            schema.IDScheme
	timeout           time.Duration
	logger            *slog.Logger
}

// NewArbiter creates an arbiter. defaultDepartment names the department used when nothing
// else can be resolved.
func NewArbiter(a adapter.Adapter, defaultDepartment string, opts ...ArbiterOption) *Arbiter {
	arb := &Arbiter{
		adapter:           a,
		defaultDepartment: defaultDepartment,
		scheme:            schema.UUIDScheme,
		timeout:           DefaultTimeout,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(arb)
	}
	return arb
}

// Decide returns a decision whose department id is always one of departments. It fails
// only when departments holds no department with a valid identifier.
func (a *Arbiter) Decide(ctx context.Context, ticket schema.Ticket, departments []schema.Department, evaluations []*schema.Evaluation) (schema.RoutingDecision, error) {
	valid := a.validDepartments(departments)
	if len(valid) == 0 {
		return schema.RoutingDecision{}, ErrNoDepartments
	}
	fallbackDept := a.resolveDefault(valid)

	candidates := RankCandidates(evaluations)
	var decision schema.RoutingDecision

	switch {
	case len(candidates) == 0:
		decision = schema.RoutingDecision{
			DepartmentName: fallbackDept.Name,
			DepartmentID:   fallbackDept.ID,
			Reason:         "no department evaluations available; assigned to default department",
			Confidence:     defaultConfidence,
			Priority:       ticket.Priority,
			Tags:           append([]string(nil), defaultTags...),
			Path:           schema.PathDefault,
		}
	default:
		picked, err := a.decideWithModel(ctx, ticket, candidates)
		if err == nil {
			decision = picked
			break
		}
		a.logger.Warn("arbitration fell back to scoring",
			slog.String("ticket", ticket.ID),
			slog.Int("evaluations", len(candidates)),
			slog.String("error", err.Error()),
		)
		decision = fallbackDecision(candidates)
	}

	return a.finalize(decision, valid, fallbackDept), nil
}

func (a *Arbiter) decideWithModel(ctx context.Context, ticket schema.Ticket, candidates []Candidate) (schema.RoutingDecision, error) {
	if a.adapter == nil {
		return schema.RoutingDecision{}, fmt.Errorf("no arbitration adapter configured")
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	resp, err := a.adapter.Complete(ctx, adapter.Request{
		Model:  a.model,
		System: arbiterSystemPrompt,
		Prompt: buildArbiterPrompt(ticket, candidates),
		JSON:   true,
	})
	if err != nil {
		return schema.RoutingDecision{}, fmt.Errorf("arbiter call: %w", err)
	}
	picked, err := parseArbiterResponse(resp.Content)
	if err != nil {
		return schema.RoutingDecision{}, fmt.Errorf("arbiter response invalid: %w", err)
	}

	return schema.RoutingDecision{
		DepartmentName:          picked.Department,
		Reason:                  picked.Reason,
		Confidence:              int(*picked.Confidence),
		Priority:                schema.Priority(picked.Priority),
		Tags:                    picked.Tags,
		EstimatedResolutionTime: picked.EstimatedResolutionTime,
		Path:                    schema.PathLLM,
	}, nil
}

func fallbackDecision(candidates []Candidate) schema.RoutingDecision {
	top := candidates[0]
	e := top.evaluation
	reason := fmt.Sprintf("highest joint interest and confidence (%d x %d = %d)", e.InterestLevel, e.ConfidenceScore, top.Score)
	if e.Rationale != "" {
		reason += ": " + e.Rationale
	}
	return schema.RoutingDecision{
		DepartmentName:          top.DepartmentName,
		DepartmentID:            top.DepartmentID,
		Reason:                  reason,
		Confidence:              fallbackConfidence(top.Score),
		Priority:                e.SuggestedPriority,
		Tags:                    e.RecommendedTags,
		EstimatedResolutionTime: e.EstimatedResolutionTime,
		Path:                    schema.PathFallback,
	}
}

// finalize normalizes the decision and pins the department to a known identifier.
func (a *Arbiter) finalize(d schema.RoutingDecision, valid []schema.Department, fallbackDept schema.Department) schema.RoutingDecision {
	d.Priority = schema.NormalizePriority(string(d.Priority))
	d.Tags = schema.CleanTags(d.Tags)
	d.Confidence = schema.ClampScore(d.Confidence)

	if dept, ok := schema.FindDepartment(valid, d.DepartmentName); ok {
		d.DepartmentName = dept.Name
		d.DepartmentID = dept.ID
		return d
	}

	a.logger.Warn("decision named an unknown department, using default",
		slog.String("named", d.DepartmentName),
		slog.String("default", fallbackDept.Name),
	)
	d.Reason = strings.TrimSpace(fmt.Sprintf("%s (unresolved department %q reassigned to %s)", d.Reason, d.DepartmentName, fallbackDept.Name))
	d.DepartmentName = fallbackDept.Name
	d.DepartmentID = fallbackDept.ID
	d.Confidence /= 2
	return d
}

// validDepartments keeps departments with a name and an identifier in the caller's scheme.
func (a *Arbiter) validDepartments(departments []schema.Department) []schema.Department {
	out := make([]schema.Department, 0, len(departments))
	for _, d := range departments {
		if strings.TrimSpace(d.Name) == "" || !a.scheme(d.ID) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// resolveDefault returns the configured default department, or the first valid department
// when the configured name is not in the list.
func (a *Arbiter) resolveDefault(valid []schema.Department) schema.Department {
	if dept, ok := schema.FindDepartment(valid, a.defaultDepartment); ok {
		return dept
	}
	return valid[0]
}

type arbiterPick struct {
	Department              string          `json:"department"`
	AssignedDepartmentName  string          `json:"assigned_department_name"`
	Reason                  string          `json:"reason"`
	Confidence              *schema.FlexInt `json:"confidence"`
	Priority                string          `json:"priority"`
	Tags                    []string        `json:"tags"`
	EstimatedResolutionTime string          `json:"estimated_resolution_time"`
}

func parseArbiterResponse(content string) (*arbiterPick, error) {
	var pick arbiterPick
	if err := schema.DecodeJSON(content, &pick); err != nil {
		return nil, err
	}
	if pick.Department == "" {
		pick.Department = pick.AssignedDepartmentName
	}
	pick.Department = strings.TrimSpace(pick.Department)
	if pick.Department == "" {
		return nil, fmt.Errorf("missing department")
	}
	if pick.Confidence == nil {
		return nil, fmt.Errorf("missing confidence")
	}
	return &pick, nil
}

func buildArbiterPrompt(ticket schema.Ticket, candidates []Candidate) string {
	var sb strings.Builder
	sb.WriteString("Ticket:\n")
	sb.WriteString(fmt.Sprintf("Title: %s\n", ticket.Title))
	sb.WriteString(fmt.Sprintf("Description: %s\n", ticket.Description))
	if ticket.Priority != "" {
		sb.WriteString(fmt.Sprintf("Reported priority: %s\n", ticket.Priority))
	}
	sb.WriteString("\nDepartment evaluations:\n")

	for _, c := range candidates {
		e := c.evaluation
		sb.WriteString(fmt.Sprintf("- %s (interest=%d, confidence=%d, priority=%s)\n", c.DepartmentName, e.InterestLevel, e.ConfidenceScore, e.SuggestedPriority))
		if e.Rationale != "" {
			sb.WriteString(fmt.Sprintf("  rationale: %s\n", e.Rationale))
		}
		if len(e.RecommendedTags) > 0 {
			sb.WriteString(fmt.Sprintf("  tags: %s\n", strings.Join(e.RecommendedTags, ", ")))
		}
		if e.EstimatedResolutionTime != "" {
			sb.WriteString(fmt.Sprintf("  eta: %s\n", e.EstimatedResolutionTime))
		}
	}

	return sb.String()
}
