package schema

import (
	"errors"
	"testing"
)

func TestNormalizePriority(t *testing.T) {
	tests := []struct {
		in   string
		want Priority
	}{
		{"High", PriorityHigh},
		{" low ", PriorityLow},
		{"CRITICAL", PriorityCritical},
		{"medium", PriorityMedium},
		{"URGENT!!", PriorityMedium},
		{"", PriorityMedium},
		{"p1", PriorityMedium},
	}
	for _, tt := range tests {
		if got := NormalizePriority(tt.in); got != tt.want {
			t.Fatalf("NormalizePriority(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeStatus(t *testing.T) {
	if got := NormalizeStatus("In Progress"); got != StatusInProgress {
		t.Fatalf("expected in_progress, got %s", got)
	}
	if got := NormalizeStatus("resolved"); got != StatusResolved {
		t.Fatalf("expected resolved, got %s", got)
	}
	if got := NormalizeStatus("waiting on customer"); got != StatusInProgress {
		t.Fatalf("expected in_progress default, got %s", got)
	}
}

func TestTicketValidate(t *testing.T) {
	ok := &Ticket{ID: "t1", Title: "VPN down", Description: "cannot connect"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := &Ticket{ID: "t2"}
	err := bad.Validate()
	if !errors.Is(err, ErrInvalidTicket) {
		t.Fatalf("expected ErrInvalidTicket, got %v", err)
	}

	var nilTicket *Ticket
	if err := nilTicket.Validate(); !errors.Is(err, ErrInvalidTicket) {
		t.Fatalf("expected ErrInvalidTicket for nil, got %v", err)
	}
}

func TestCleanTags(t *testing.T) {
	got := CleanTags([]string{" vpn ", "", "VPN", "network", "remote", "extra"})
	want := []string{"vpn", "network", "remote"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "plain", in: `{"a":1}`},
		{name: "fenced", in: "```json\n{\"a\":1}\n```"},
		{name: "prose", in: "Sure! Here it is: {\"a\":1} hope that helps"},
		{name: "array", in: "result: [1,2,3]"},
		{name: "garbage", in: "I cannot answer that", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractJSON(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractJSON(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestFlexInt(t *testing.T) {
	var payload struct {
		A FlexInt `json:"a"`
		B FlexInt `json:"b"`
		C FlexInt `json:"c"`
	}
	if err := DecodeJSON(`{"a": 72.5, "b": "85", "c": "40%"}`, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.A != 73 || payload.B != 85 || payload.C != 40 {
		t.Fatalf("unexpected values: %+v", payload)
	}
}

func TestUUIDScheme(t *testing.T) {
	if !UUIDScheme("3f8e2a51-7c1d-4b8e-9a2f-1c2d3e4f5a6b") {
		t.Fatalf("expected canonical uuid to be valid")
	}
	for _, bad := range []string{"", "it-dept", "3f8e2a517c1d4b8e9a2f1c2d3e4f5a6b", "dept_123"} {
		if UUIDScheme(bad) {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestFindDepartment(t *testing.T) {
	depts := []Department{{ID: "1", Name: "IT Support"}, {ID: "2", Name: "HR"}}
	d, ok := FindDepartment(depts, "it support")
	if !ok || d.ID != "1" {
		t.Fatalf("expected IT Support, got %+v ok=%v", d, ok)
	}
	if _, ok := FindDepartment(depts, "IT"); ok {
		t.Fatalf("expected no partial match")
	}
}
