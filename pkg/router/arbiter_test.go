package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zen-systems/triage/pkg/adapter"
	"github.com/zen-systems/triage/pkg/schema"
)

var (
	itDept      = schema.Department{ID: "11111111-1111-4111-8111-111111111111", Name: "IT"}
	hrDept      = schema.Department{ID: "22222222-2222-4222-8222-222222222222", Name: "HR"}
	generalDept = schema.Department{ID: "33333333-3333-4333-8333-333333333333", Name: "General Support"}
	allDepts    = []schema.Department{itDept, hrDept, generalDept}
	ticket      = schema.Ticket{ID: "t1", Title: "Laptop will not boot", Description: "Black screen after update", Priority: "HIGH"}
)

func eval(dept schema.Department, interest, confidence int) *schema.Evaluation {
	return &schema.Evaluation{
		DepartmentID:      dept.ID,
		DepartmentName:    dept.Name,
		InterestLevel:     interest,
		ConfidenceScore:   confidence,
		SuggestedPriority: schema.PriorityHigh,
		RecommendedTags:   []string{"hardware"},
	}
}

func idSet() map[string]bool {
	ids := make(map[string]bool)
	for _, d := range allDepts {
		ids[d.ID] = true
	}
	return ids
}

func TestFallbackScenarioWhenArbiterFails(t *testing.T) {
	mock := adapter.NewMockAdapterWithRules("", adapter.MockRule{Err: errors.New("service unavailable")})
	arb := NewArbiter(mock, "General Support")

	decision, err := arb.Decide(context.Background(), ticket, allDepts, []*schema.Evaluation{
		eval(itDept, 90, 80),
		eval(hrDept, 20, 95),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.DepartmentName != "IT" || decision.DepartmentID != itDept.ID {
		t.Fatalf("expected IT, got %+v", decision)
	}
	if decision.Confidence != 72 {
		t.Fatalf("expected confidence 72, got %d", decision.Confidence)
	}
	if decision.Path != schema.PathFallback {
		t.Fatalf("expected fallback path, got %s", decision.Path)
	}
}

func TestEmptyEvaluationsUseDefault(t *testing.T) {
	mock := adapter.NewMockAdapter()
	arb := NewArbiter(mock, "general support")

	decision, err := arb.Decide(context.Background(), ticket, allDepts, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.DepartmentID != generalDept.ID || decision.DepartmentName != "General Support" {
		t.Fatalf("expected default department, got %+v", decision)
	}
	if decision.Confidence != 30 {
		t.Fatalf("expected confidence 30, got %d", decision.Confidence)
	}
	if len(decision.Tags) != 2 || decision.Tags[0] != "auto-assigned" || decision.Tags[1] != "requires-review" {
		t.Fatalf("unexpected tags %v", decision.Tags)
	}
	if decision.Priority != schema.PriorityHigh {
		t.Fatalf("expected ticket priority normalized to high, got %s", decision.Priority)
	}
	if mock.CallCount() != 0 {
		t.Fatalf("model should not be asked without evaluations")
	}
}

func TestModelDecisionIsResolvedAndNormalized(t *testing.T) {
	mock := adapter.NewMockAdapterWithRules(`Here you go: {"department":"hr","reason":"payroll","confidence":"88","priority":"URGENT!!","tags":["pay","pay","leave","benefits","x"]}`)
	arb := NewArbiter(mock, "General Support")

	decision, err := arb.Decide(context.Background(), ticket, allDepts, []*schema.Evaluation{eval(itDept, 10, 10), eval(hrDept, 90, 90)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.DepartmentName != "HR" || decision.DepartmentID != hrDept.ID {
		t.Fatalf("expected HR, got %+v", decision)
	}
	if decision.Priority != schema.PriorityMedium {
		t.Fatalf("expected medium, got %s", decision.Priority)
	}
	if len(decision.Tags) != 3 || decision.Confidence != 88 || decision.Path != schema.PathLLM {
		t.Fatalf("unexpected decision %+v", decision)
	}
	if !strings.Contains(mock.Calls()[0].Prompt, "HR (interest=90, confidence=90") {
		t.Fatalf("expected evaluations in prompt, got %s", mock.Calls()[0].Prompt)
	}
}

func TestUnknownDepartmentFromModelIsReplaced(t *testing.T) {
	mock := adapter.NewMockAdapterWithRules(`{"department":"Networking Team","reason":"vpn","confidence":80,"priority":"low"}`)
	arb := NewArbiter(mock, "General Support")

	decision, err := arb.Decide(context.Background(), ticket, allDepts, []*schema.Evaluation{eval(itDept, 50, 50)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.DepartmentID != generalDept.ID {
		t.Fatalf("expected default id, got %+v", decision)
	}
	if decision.Confidence != 40 {
		t.Fatalf("expected halved confidence, got %d", decision.Confidence)
	}
}

func TestMalformedModelOutputFallsBack(t *testing.T) {
	for _, content := range []string{"IT obviously", `{"reason":"no department"}`, `{"department":"IT"}`} {
		mock := adapter.NewMockAdapterWithRules(content)
		arb := NewArbiter(mock, "General Support")
		decision, err := arb.Decide(context.Background(), ticket, allDepts, []*schema.Evaluation{eval(hrDept, 60, 50)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if decision.Path != schema.PathFallback || decision.DepartmentName != "HR" || decision.Confidence != 30 {
			t.Fatalf("content %q: unexpected decision %+v", content, decision)
		}
	}
}

func TestTieBreakIsByDepartmentName(t *testing.T) {
	arb := NewArbiter(nil, "General Support")
	decision, err := arb.Decide(context.Background(), ticket, allDepts, []*schema.Evaluation{eval(itDept, 50, 40), eval(hrDept, 40, 50)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.DepartmentName != "HR" {
		t.Fatalf("expected HR to win the tie, got %s", decision.DepartmentName)
	}
}

func TestArbiterTotality(t *testing.T) {
	invented := &schema.Evaluation{DepartmentID: "dept-42", DepartmentName: "Legal", InterestLevel: 100, ConfidenceScore: 100}
	ids := idSet()

	inputs := [][]*schema.Evaluation{
		nil,
		{},
		{nil, nil, nil},
		{invented},
		{nil, invented, eval(itDept, 1, 1)},
		{eval(hrDept, 0, 0)},
	}
	arb := NewArbiter(adapter.NewMockAdapterWithRules("garbage"), "Does Not Exist")
	for i, evals := range inputs {
		decision, err := arb.Decide(context.Background(), ticket, allDepts, evals)
		if err != nil {
			t.Fatalf("case %d: unexpected error: %v", i, err)
		}
		if !ids[decision.DepartmentID] {
			t.Fatalf("case %d: department id %q not in caller set", i, decision.DepartmentID)
		}
		if decision.Confidence < 0 || decision.Confidence > 100 {
			t.Fatalf("case %d: confidence out of range: %d", i, decision.Confidence)
		}
	}
}

func TestInvalidDepartmentIDsAreNeverUsed(t *testing.T) {
	depts := []schema.Department{{ID: "it", Name: "IT"}, generalDept}
	arb := NewArbiter(nil, "General Support")

	decision, err := arb.Decide(context.Background(), ticket, depts, []*schema.Evaluation{{DepartmentName: "IT", InterestLevel: 90, ConfidenceScore: 90}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.DepartmentID != generalDept.ID || decision.Confidence != 40 {
		t.Fatalf("expected default substitution with halved confidence, got %+v", decision)
	}
}

func TestNoDepartments(t *testing.T) {
	arb := NewArbiter(nil, "General Support")
	if _, err := arb.Decide(context.Background(), ticket, nil, nil); !errors.Is(err, ErrNoDepartments) {
		t.Fatalf("expected ErrNoDepartments, got %v", err)
	}
	if _, err := arb.Decide(context.Background(), ticket, []schema.Department{{ID: "x", Name: "X"}}, nil); !errors.Is(err, ErrNoDepartments) {
		t.Fatalf("expected ErrNoDepartments for invalid ids, got %v", err)
	}

	custom := NewArbiter(nil, "X", WithIDScheme(schema.AnyNonEmpty))
	decision, err := custom.Decide(context.Background(), ticket, []schema.Department{{ID: "x", Name: "X"}}, nil)
	if err != nil || decision.DepartmentID != "x" {
		t.Fatalf("expected custom scheme to accept opaque ids, got %+v %v", decision, err)
	}
}

func TestRankCandidates(t *testing.T) {
	ranked := RankCandidates([]*schema.Evaluation{nil, eval(itDept, 10, 10), eval(hrDept, 10, 10), eval(generalDept, 50, 50)})
	if len(ranked) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(ranked))
	}
	if ranked[0].DepartmentName != "General Support" || ranked[1].DepartmentName != "HR" || ranked[2].DepartmentName != "IT" {
		t.Fatalf("unexpected order %+v", ranked)
	}
	if fallbackConfidence(7200) != 72 || fallbackConfidence(1950) != 20 || fallbackConfidence(10000) != 100 {
		t.Fatalf("unexpected fallback confidence rounding")
	}
}
