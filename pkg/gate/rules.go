package gate

import (
	"fmt"
	"regexp"
	"strings"
)

// Length bounds applied by Defaults.
const (
	DefaultMinLength = 40
	DefaultMaxLength = 4000
)

var placeholderPatterns = []struct {
	rule string
	re   *regexp.Regexp
}{
	{"bracket_placeholder", regexp.MustCompile(`\[(?:[A-Z][A-Za-z']*)(?: [A-Za-z']+){0,4}\]`)},
	{"template_variable", regexp.MustCompile(`\{\{[^}]*\}\}`)},
	{"angle_placeholder", regexp.MustCompile(`<[A-Z][A-Z_ ]{2,}>`)},
	{"filler_text", regexp.MustCompile(`(?i)\blorem ipsum\b`)},
	{"unfinished_marker", regexp.MustCompile(`\b(?:TODO|TBD|XXX)\b`)},
}

// PlaceholderGate fails replies that still contain template slots or filler.
type PlaceholderGate struct{}

// NewPlaceholderGate creates a placeholder gate.
func NewPlaceholderGate() *PlaceholderGate {
	return &PlaceholderGate{}
}

// Name returns the gate identifier.
func (g *PlaceholderGate) Name() string {
	return "placeholder"
}

// Evaluate reports each distinct placeholder found.
func (g *PlaceholderGate) Evaluate(text string) *Result {
	var violations []Violation
	for _, p := range placeholderPatterns {
		for _, m := range uniqueMatches(p.re, text) {
			violations = append(violations, Violation{
				Rule:       p.rule,
				Severity:   SeverityError,
				Message:    fmt.Sprintf("reply contains unfilled placeholder %q", m),
				Suggestion: "replace it with the actual detail or remove it",
			})
		}
	}
	return result(violations, nil)
}

var boilerplatePhrases = []string{
	"as an ai language model",
	"as an ai assistant",
	"i am an ai",
	"i'm an ai",
	"i do not have access to your account",
}

// BoilerplateGate fails replies that talk about the model instead of the ticket.
type BoilerplateGate struct {
	phrases []string
}

// NewBoilerplateGate creates a boilerplate gate with the built-in phrase list plus extra.
func NewBoilerplateGate(extra ...string) *BoilerplateGate {
	phrases := append([]string(nil), boilerplatePhrases...)
	for _, p := range extra {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			phrases = append(phrases, p)
		}
	}
	return &BoilerplateGate{phrases: phrases}
}

// Name returns the gate identifier.
func (g *BoilerplateGate) Name() string {
	return "boilerplate"
}

// Evaluate reports each boilerplate phrase found.
func (g *BoilerplateGate) Evaluate(text string) *Result {
	lower := strings.ToLower(text)
	var violations []Violation
	for _, p := range g.phrases {
		if strings.Contains(lower, p) {
			violations = append(violations, Violation{
				Rule:       "model_boilerplate",
				Severity:   SeverityError,
				Message:    fmt.Sprintf("reply contains assistant boilerplate %q", p),
				Suggestion: "write as the support agent",
			})
		}
	}
	return result(violations, nil)
}

// LengthGate bounds the reply length in characters. A short reply fails; a long one warns.
type LengthGate struct {
	min int
	max int
}

// NewLengthGate creates a length gate. Non-positive bounds are not enforced.
func NewLengthGate(min, max int) *LengthGate {
	return &LengthGate{min: min, max: max}
}

// Name returns the gate identifier.
func (g *LengthGate) Name() string {
	return "length"
}

// Evaluate checks the trimmed length.
func (g *LengthGate) Evaluate(text string) *Result {
	n := len([]rune(strings.TrimSpace(text)))
	var violations []Violation
	var hints []string
	if g.min > 0 && n < g.min {
		violations = append(violations, Violation{
			Rule:     "too_short",
			Severity: SeverityError,
			Message:  fmt.Sprintf("reply is %d characters, minimum is %d", n, g.min),
		})
		hints = append(hints, "address the customer's issue with concrete next steps")
	}
	if g.max > 0 && n > g.max {
		violations = append(violations, Violation{
			Rule:       "too_long",
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("reply is %d characters, maximum is %d", n, g.max),
			Suggestion: "shorten it",
		})
	}
	return result(violations, hints)
}

func uniqueMatches(re *regexp.Regexp, text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range re.FindAllString(text, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}
