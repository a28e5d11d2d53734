// Package gate runs local quality checks over draft replies before a model reviews them.
package gate

import (
	"strings"
)

// Severity levels. Only errors fail a gate.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Gate checks a reply against one quality rule set.
type Gate interface {
	// Evaluate checks the reply text.
	Evaluate(text string) *Result

	// Name returns the gate identifier.
	Name() string
}

// Result contains the outcome of a gate evaluation.
type Result struct {
	Passed      bool        `json:"passed"`
	Score       int         `json:"score"`
	Violations  []Violation `json:"violations,omitempty"`
	RepairHints []string    `json:"repair_hints,omitempty"`
}

// Violation describes a specific quality issue.
type Violation struct {
	Rule       string `json:"rule"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// NewPassingResult creates a result indicating the gate passed.
func NewPassingResult(score int) *Result {
	return &Result{
		Passed: true,
		Score:  score,
	}
}

// NewFailingResult creates a result indicating the gate failed.
func NewFailingResult(score int, violations []Violation, hints []string) *Result {
	return &Result{
		Passed:      false,
		Score:       score,
		Violations:  violations,
		RepairHints: hints,
	}
}

// Run evaluates text against every gate. The combined result passes only if each gate
// passes, and its score is the lowest gate score.
func Run(text string, gates ...Gate) *Result {
	combined := NewPassingResult(100)
	for _, g := range gates {
		if g == nil {
			continue
		}
		r := g.Evaluate(text)
		if r == nil {
			continue
		}
		if !r.Passed {
			combined.Passed = false
		}
		if r.Score < combined.Score {
			combined.Score = r.Score
		}
		combined.Violations = append(combined.Violations, r.Violations...)
		combined.RepairHints = append(combined.RepairHints, r.RepairHints...)
	}
	return combined
}

// Feedback renders violations and hints as one issue per line, suitable for a repair prompt.
func (r *Result) Feedback() string {
	if r == nil {
		return ""
	}
	var lines []string
	for _, v := range r.Violations {
		line := v.Message
		if v.Suggestion != "" {
			line += " (" + v.Suggestion + ")"
		}
		lines = append(lines, line)
	}
	lines = append(lines, r.RepairHints...)
	return strings.Join(lines, "\n")
}

// Defaults returns the gates applied to every draft.
func Defaults() []Gate {
	return []Gate{
		NewPlaceholderGate(),
		NewBoilerplateGate(),
		NewLengthGate(DefaultMinLength, DefaultMaxLength),
	}
}

func score(violations []Violation) int {
	s := 100
	for _, v := range violations {
		switch v.Severity {
		case SeverityError:
			s -= 40
		case SeverityWarning:
			s -= 10
		}
	}
	if s < 0 {
		return 0
	}
	return s
}

func hasErrors(violations []Violation) bool {
	for _, v := range violations {
		if v.Severity == SeverityError {
			return true
		}
	}
	return false
}

func result(violations []Violation, hints []string) *Result {
	if len(violations) == 0 {
		return NewPassingResult(100)
	}
	if !hasErrors(violations) {
		r := NewPassingResult(score(violations))
		r.Violations = violations
		return r
	}
	return NewFailingResult(score(violations), violations, hints)
}
