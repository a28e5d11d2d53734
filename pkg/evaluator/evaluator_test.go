package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/zen-systems/triage/pkg/adapter"
	"github.com/zen-systems/triage/pkg/schema"
)

var (
	itDept = schema.Department{ID: "11111111-1111-4111-8111-111111111111", Name: "IT Support", Description: "Hardware, software, network access"}
	hrDept = schema.Department{ID: "22222222-2222-4222-8222-222222222222", Name: "HR", Description: "Payroll, leave, benefits"}
	vpn    = schema.Ticket{ID: "t1", Title: "VPN keeps dropping", Description: "Disconnects every hour"}
)

func TestEvaluateParsesAndUsesProfileIdentity(t *testing.T) {
	mock := adapter.NewMockAdapterWithRules("{}", adapter.MockRule{
		Contains: "Department: IT Support",
		Response: "```json\n{\"department_name\":\"Networking\",\"interest_level\":\"90\",\"confidence_score\":80.4,\"rationale\":\"network issue\",\"suggested_priority\":\"HIGH\",\"recommended_tags\":[\"vpn\",\"network\",\"remote\",\"extra\"],\"estimated_resolution_time\":\"2h\"}\n```",
	})
	e := New(mock, "mock-1")

	eval, err := e.Evaluate(context.Background(), itDept, vpn, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.DepartmentName != "IT Support" || eval.DepartmentID != itDept.ID {
		t.Fatalf("identity should come from the profile, got %+v", eval)
	}
	if eval.InterestLevel != 90 || eval.ConfidenceScore != 80 {
		t.Fatalf("unexpected scores %+v", eval)
	}
	if eval.SuggestedPriority != schema.PriorityHigh {
		t.Fatalf("expected high priority, got %s", eval.SuggestedPriority)
	}
	if len(eval.RecommendedTags) != 3 {
		t.Fatalf("expected tags capped at 3, got %v", eval.RecommendedTags)
	}
}

func TestEvaluateClampsScores(t *testing.T) {
	mock := adapter.NewMockAdapterWithRules(`{"interest_level": 140, "confidence_score": -3}`)
	eval, err := New(mock, "").Evaluate(context.Background(), itDept, vpn, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.InterestLevel != 100 || eval.ConfidenceScore != 0 {
		t.Fatalf("expected clamped scores, got %+v", eval)
	}
}

func TestEvaluateMalformedAbstains(t *testing.T) {
	for _, content := range []string{"I think IT should take it", "{}", `{"interest_level": 50}`} {
		mock := adapter.NewMockAdapterWithRules(content)
		if _, err := New(mock, "").Evaluate(context.Background(), itDept, vpn, nil); err == nil {
			t.Fatalf("expected error for %q", content)
		}
	}
}

func TestPromptStatesMissingPrecedent(t *testing.T) {
	mock := adapter.NewMockAdapter()
	e := New(mock, "")
	_, _ = e.Evaluate(context.Background(), itDept, vpn, nil)

	calls := mock.Calls()
	if len(calls) != 1 || !strings.Contains(calls[0].Prompt, "No precedent found in this department.") {
		t.Fatalf("expected explicit no-precedent line, got %+v", calls)
	}
	if !strings.Contains(calls[0].Prompt, itDept.Description) {
		t.Fatalf("expected department description in prompt")
	}
}

func TestPromptCapsPrecedent(t *testing.T) {
	mock := adapter.NewMockAdapter()
	e := New(mock, "", WithPrecedentLimit(2))
	precedent := []schema.Ticket{{Title: "one"}, {Title: "two"}, {Title: "three"}}
	_, _ = e.Evaluate(context.Background(), itDept, vpn, precedent)

	prompt := mock.Calls()[0].Prompt
	if !strings.Contains(prompt, "2. two") || strings.Contains(prompt, "three") {
		t.Fatalf("expected two precedent entries, got:\n%s", prompt)
	}
}

type blockingAdapter struct{}

func (blockingAdapter) Complete(ctx context.Context, _ adapter.Request) (*adapter.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (blockingAdapter) Name() string     { return "blocking" }
func (blockingAdapter) Models() []string { return nil }

func TestEvaluateTimeoutAbstains(t *testing.T) {
	e := New(blockingAdapter{}, "", WithTimeout(20*time.Millisecond))
	start := time.Now()
	_, err := e.Evaluate(context.Background(), itDept, vpn, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout not applied")
	}
}

func TestPanelEvaluatesAllDepartments(t *testing.T) {
	mock := adapter.NewMockAdapterWithRules("not json",
		adapter.MockRule{Contains: "Department: IT Support", Response: `{"interest_level":90,"confidence_score":80}`},
		adapter.MockRule{Contains: "Department: Facilities", Err: errors.New("service unavailable")},
	)
	facilities := schema.Department{ID: "33333333-3333-4333-8333-333333333333", Name: "Facilities"}
	panel := NewPanel(New(mock, ""), nil)

	precedent := func(_ context.Context, d schema.Department) ([]schema.Ticket, error) {
		if d.Name == "HR" {
			return nil, errors.New("store offline")
		}
		return []schema.Ticket{{Title: "old " + d.Name}}, nil
	}

	opinions := panel.EvaluateAll(context.Background(), vpn, []schema.Department{itDept, hrDept, facilities}, precedent)
	if len(opinions) != 3 {
		t.Fatalf("expected 3 opinions, got %d", len(opinions))
	}
	if opinions[0].Department.Name != "IT Support" || opinions[0].Evaluation == nil {
		t.Fatalf("expected IT evaluation first, got %+v", opinions[0])
	}
	if opinions[1].Evaluation != nil || opinions[2].Evaluation != nil {
		t.Fatalf("expected HR and Facilities to abstain")
	}
	if mock.CallCount() != 3 {
		t.Fatalf("expected every department to be called, got %d", mock.CallCount())
	}

	evals := Evaluations(opinions)
	if len(evals) != 3 || evals[0] == nil || evals[1] != nil {
		t.Fatalf("unexpected evaluations %+v", evals)
	}
}

// barrierAdapter holds every call until n calls are in flight at once.
type barrierAdapter struct {
	n       int32
	arrived atomic.Int32
	ready   chan struct{}
	content string
}

func newBarrierAdapter(n int, content string) *barrierAdapter {
	return &barrierAdapter{n: int32(n), ready: make(chan struct{}), content: content}
}

func (b *barrierAdapter) Complete(ctx context.Context, _ adapter.Request) (*adapter.Response, error) {
	if b.arrived.Add(1) == b.n {
		close(b.ready)
	}
	select {
	case <-b.ready:
		return &adapter.Response{Content: b.content}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
func (b *barrierAdapter) Name() string     { return "barrier" }
func (b *barrierAdapter) Models() []string { return nil }

func TestPanelEvaluatesConcurrently(t *testing.T) {
	depts := []schema.Department{itDept, hrDept, {ID: "33333333-3333-4333-8333-333333333333", Name: "Facilities"}}
	barrier := newBarrierAdapter(len(depts), `{"interest_level":50,"confidence_score":50}`)
	panel := NewPanel(New(barrier, "", WithTimeout(2*time.Second)), nil)

	opinions := panel.EvaluateAll(context.Background(), vpn, depts, nil)
	for _, o := range opinions {
		if o.Evaluation == nil {
			t.Fatalf("%s abstained, evaluations did not overlap: %v", o.Department.Name, o.Err)
		}
	}
}

func TestPromptTruncatesOnRuneBoundary(t *testing.T) {
	mock := adapter.NewMockAdapter()
	long := strings.Repeat("é", 400)
	_, _ = New(mock, "").Evaluate(context.Background(), itDept, vpn, []schema.Ticket{{Title: "accents", Description: long}})

	prompt := mock.Calls()[0].Prompt
	if !utf8.ValidString(prompt) {
		t.Fatalf("prompt is not valid UTF-8")
	}
	if !strings.Contains(prompt, strings.Repeat("é", 300)+"...") || strings.Contains(prompt, strings.Repeat("é", 301)) {
		t.Fatalf("expected description cut at 300 runes")
	}
}

func TestPrecedentLimitCapped(t *testing.T) {
	mock := adapter.NewMockAdapter()
	precedent := make([]schema.Ticket, 8)
	for i := range precedent {
		precedent[i] = schema.Ticket{Title: fmt.Sprintf("old-%d", i+1)}
	}
	_, _ = New(mock, "", WithPrecedentLimit(8)).Evaluate(context.Background(), itDept, vpn, precedent)

	prompt := mock.Calls()[0].Prompt
	if !strings.Contains(prompt, "5. old-5") || strings.Contains(prompt, "old-6") {
		t.Fatalf("expected at most %d precedent entries, got:\n%s", MaxPrecedentLimit, prompt)
	}
}
