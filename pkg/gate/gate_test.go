package gate

import (
	"strings"
	"testing"
)

const goodReply = "Thanks for reporting this. Please restart the VPN client and sign in again; if the drop continues, reply with the time it happened."

func TestPlaceholderGate(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantPass  bool
		wantRules []string
	}{
		{name: "clean", text: goodReply, wantPass: true},
		{name: "bracket", text: "Hi [Customer Name], your laptop is ready.", wantRules: []string{"bracket_placeholder"}},
		{name: "template", text: "Hello {{ name }}, the ticket is closed.", wantRules: []string{"template_variable"}},
		{name: "angle", text: "Regards, <AGENT NAME>", wantRules: []string{"angle_placeholder"}},
		{name: "lorem", text: "Lorem ipsum dolor sit amet.", wantRules: []string{"filler_text"}},
		{name: "todo", text: "We will fix it TODO add date.", wantRules: []string{"unfinished_marker"}},
		{name: "repeated counts once", text: "[Your Name] and [Your Name]", wantRules: []string{"bracket_placeholder"}},
	}

	g := NewPlaceholderGate()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := g.Evaluate(tt.text)
			if r.Passed != tt.wantPass {
				t.Fatalf("Passed = %v, want %v (%+v)", r.Passed, tt.wantPass, r.Violations)
			}
			if len(r.Violations) != len(tt.wantRules) {
				t.Fatalf("got %d violations, want %d: %+v", len(r.Violations), len(tt.wantRules), r.Violations)
			}
			for i, rule := range tt.wantRules {
				if r.Violations[i].Rule != rule {
					t.Fatalf("violation %d rule = %s, want %s", i, r.Violations[i].Rule, rule)
				}
			}
		})
	}
}

func TestBoilerplateGate(t *testing.T) {
	g := NewBoilerplateGate("we apologize for any inconvenience")
	if r := g.Evaluate(goodReply); !r.Passed {
		t.Fatalf("expected clean reply to pass, got %+v", r)
	}
	r := g.Evaluate("As an AI language model, I cannot reset passwords.")
	if r.Passed || r.Violations[0].Rule != "model_boilerplate" {
		t.Fatalf("expected boilerplate failure, got %+v", r)
	}
	if r := g.Evaluate("We apologize for any inconvenience caused."); r.Passed {
		t.Fatalf("expected extra phrase to fail")
	}
}

func TestLengthGate(t *testing.T) {
	g := NewLengthGate(10, 50)
	if r := g.Evaluate("ok"); r.Passed || len(r.RepairHints) == 0 {
		t.Fatalf("expected short reply to fail with a hint, got %+v", r)
	}
	long := g.Evaluate(strings.Repeat("a", 60))
	if !long.Passed || len(long.Violations) != 1 || long.Violations[0].Severity != SeverityWarning {
		t.Fatalf("expected long reply to pass with a warning, got %+v", long)
	}
	if long.Score != 90 {
		t.Fatalf("expected warning to cost 10 points, got %d", long.Score)
	}
	if r := NewLengthGate(0, 0).Evaluate(""); !r.Passed {
		t.Fatalf("expected unbounded gate to pass")
	}
}

func TestRunCombines(t *testing.T) {
	r := Run("Hi [Customer Name]", Defaults()...)
	if r.Passed {
		t.Fatalf("expected failure")
	}
	if len(r.Violations) != 2 {
		t.Fatalf("expected placeholder and length violations, got %+v", r.Violations)
	}
	fb := r.Feedback()
	if !strings.Contains(fb, `"[Customer Name]"`) || !strings.Contains(fb, "minimum is 40") {
		t.Fatalf("feedback missing issues: %q", fb)
	}
	if strings.Count(fb, "\n") != 2 {
		t.Fatalf("expected one line per issue and hint, got %q", fb)
	}

	ok := Run(goodReply, Defaults()...)
	if !ok.Passed || ok.Score != 100 || ok.Feedback() != "" {
		t.Fatalf("expected clean pass, got %+v", ok)
	}
	if r := Run(goodReply); !r.Passed {
		t.Fatalf("expected no gates to pass")
	}
}
