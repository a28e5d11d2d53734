// Package schema defines the records exchanged between the triage pipeline and its callers.
package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTicket is returned when a ticket lacks the fields the pipeline needs.
var ErrInvalidTicket = errors.New("invalid ticket")

// Priority is the normalized ticket priority.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Status is the ticket lifecycle state as seen by the pipeline.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// NormalizePriority maps arbitrary model or user text onto a known priority.
// Anything unrecognized becomes medium.
func NormalizePriority(value string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(value))) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	case PriorityCritical:
		return PriorityCritical
	default:
		return PriorityMedium
	}
}

// NormalizeStatus maps a suggested status onto a known status, defaulting to in_progress.
func NormalizeStatus(value string) Status {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.ReplaceAll(v, " ", "_")
	v = strings.ReplaceAll(v, "-", "_")
	switch Status(v) {
	case StatusOpen:
		return StatusOpen
	case StatusResolved:
		return StatusResolved
	case StatusClosed:
		return StatusClosed
	default:
		return StatusInProgress
	}
}

// Ticket is the read-only projection of a support ticket.
type Ticket struct {
	ID             string    `json:"id" yaml:"id"`
	Title          string    `json:"title" yaml:"title"`
	Description    string    `json:"description" yaml:"description"`
	Category       string    `json:"category,omitempty" yaml:"category,omitempty"`
	Priority       Priority  `json:"priority,omitempty" yaml:"priority,omitempty"`
	Status         Status    `json:"status,omitempty" yaml:"status,omitempty"`
	DepartmentID   string    `json:"department_id,omitempty" yaml:"department_id,omitempty"`
	DepartmentName string    `json:"department_name,omitempty" yaml:"department_name,omitempty"`
	RequesterID    string    `json:"requester_id,omitempty" yaml:"requester_id,omitempty"`
	RequesterName  string    `json:"requester_name,omitempty" yaml:"requester_name,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Validate reports whether the ticket carries an identity, a title and a description.
func (t *Ticket) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: ticket is nil", ErrInvalidTicket)
	}
	var missing []string
	if strings.TrimSpace(t.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(t.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(t.Description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidTicket, strings.Join(missing, ", "))
	}
	return nil
}

// Department is the reference data describing one routing target.
type Department struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Evaluation is one department's structured opinion about a ticket.
type Evaluation struct {
	DepartmentID            string   `json:"department_id"`
	DepartmentName          string   `json:"department_name"`
	InterestLevel           int      `json:"interest_level"`
	ConfidenceScore         int      `json:"confidence_score"`
	Rationale               string   `json:"rationale"`
	SuggestedPriority       Priority `json:"suggested_priority"`
	RecommendedTags         []string `json:"recommended_tags,omitempty"`
	EstimatedResolutionTime string   `json:"estimated_resolution_time,omitempty"`
}

// Score is the joint interest/confidence weight used by the arithmetic fallback.
func (e *Evaluation) Score() int {
	if e == nil {
		return 0
	}
	return e.InterestLevel * e.ConfidenceScore
}

// DecisionPath records which arbitration path produced a decision.
type DecisionPath string

const (
	PathLLM      DecisionPath = "llm"
	PathFallback DecisionPath = "fallback"
	PathDefault  DecisionPath = "default"
)

// RoutingDecision is the single routing outcome for a ticket.
type RoutingDecision struct {
	DepartmentName          string       `json:"assigned_department_name"`
	DepartmentID            string       `json:"assigned_department_id"`
	Reason                  string       `json:"reason"`
	Confidence              int          `json:"confidence"`
	Priority                Priority     `json:"priority"`
	Tags                    []string     `json:"tags,omitempty"`
	EstimatedResolutionTime string       `json:"estimated_resolution_time,omitempty"`
	Path                    DecisionPath `json:"path"`
}

// DraftResponse is a vetted candidate reply for an agent to review.
type DraftResponse struct {
	Text            string   `json:"text"`
	Confidence      int      `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
	SuggestedStatus Status   `json:"suggested_status"`
	SuggestedTags   []string `json:"suggested_tags,omitempty"`
	Attempts        int      `json:"attempts"`
	Fallback        bool     `json:"fallback"`
}

// ValidationVerdict is the critique of one candidate draft.
type ValidationVerdict struct {
	IsValid      bool   `json:"is_valid"`
	Feedback     string `json:"feedback"`
	ImprovedText string `json:"improved_text,omitempty"`
}

// Detection is a binary finding with its rationale.
type Detection struct {
	Detected  bool   `json:"detected"`
	Rationale string `json:"rationale"`
}

// PatternReport is the outcome of batch pattern detection over a set of tickets.
type PatternReport struct {
	MicroSummaries []string  `json:"micro_summaries"`
	MacroSummary   string    `json:"macro_summary"`
	Repetition     Detection `json:"repetition"`
	Misuse         Detection `json:"misuse"`
	DepartmentName string    `json:"department_name"`
}

// MaxTags is the most tags any pipeline output carries.
const MaxTags = 3

// CleanTags trims, drops empties and duplicates, and caps the list at MaxTags.
func CleanTags(tags []string) []string {
	out := make([]string, 0, MaxTags)
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}

// ClampScore bounds a score to [0,100].
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
