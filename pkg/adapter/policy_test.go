package adapter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPolicyAdapterRetriesTransient(t *testing.T) {
	flaky := &flakyAdapter{failures: 2, err: &AdapterError{Status: 503, Err: errors.New("unavailable")}}
	p, err := NewPolicyAdapter(Target{Adapter: flaky, Model: "m"}, RetryPolicy{MaxRetries: 2, BaseBackoffMs: 1, MaxBackoffMs: 2}, nil)
	if err != nil {
		t.Fatalf("new policy adapter: %v", err)
	}

	resp, err := p.Complete(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if resp.Content != "ok" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if flaky.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", flaky.calls)
	}
}

func TestPolicyAdapterFallsBackOnPermanentError(t *testing.T) {
	broken := &flakyAdapter{failures: 100, err: &AdapterError{Status: 400, Err: errors.New("bad request")}}
	backup := NewMockAdapterWithRules("backup")
	p, err := NewPolicyAdapter(Target{Adapter: broken, Model: "m"}, RetryPolicy{MaxRetries: 3, BaseBackoffMs: 1, MaxBackoffMs: 1}, nil,
		Target{Adapter: backup, Model: "mock-1"})
	if err != nil {
		t.Fatalf("new policy adapter: %v", err)
	}

	resp, err := p.Complete(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("expected fallback success, got %v", err)
	}
	if resp.Content != "backup" {
		t.Fatalf("expected backup content, got %q", resp.Content)
	}
	if broken.calls != 1 {
		t.Fatalf("expected permanent error not to be retried, got %d calls", broken.calls)
	}
}

func TestPolicyAdapterReturnsLastError(t *testing.T) {
	broken := &flakyAdapter{failures: 100, err: errors.New("boom")}
	p, _ := NewPolicyAdapter(Target{Adapter: broken}, DefaultRetryPolicy(), nil)
	if _, err := p.Complete(context.Background(), Request{Prompt: "hi"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestComputeBackoffCaps(t *testing.T) {
	if got := computeBackoff(200, 2000, 0); got != 200*time.Millisecond {
		t.Fatalf("attempt 0 backoff = %s", got)
	}
	if got := computeBackoff(200, 2000, 10); got != 2000*time.Millisecond {
		t.Fatalf("expected cap, got %s", got)
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(&AdapterError{Status: 429}) {
		t.Fatalf("429 should be transient")
	}
	if IsTransient(&AdapterError{Status: 401}) {
		t.Fatalf("401 should not be transient")
	}
	if !IsTransient(context.DeadlineExceeded) {
		t.Fatalf("deadline should be transient")
	}
	if IsTransient(context.Canceled) {
		t.Fatalf("cancel should not be transient")
	}
}

func TestMockAdapterRules(t *testing.T) {
	m := NewMockAdapterWithRules(`{"fallback":true}`,
		MockRule{Contains: "summarize", Response: "summary"},
		MockRule{Contains: "explode", Err: errors.New("kaboom")},
	)
	resp, _ := m.Complete(context.Background(), Request{Prompt: "please summarize this"})
	if resp.Content != "summary" {
		t.Fatalf("expected scripted response, got %q", resp.Content)
	}
	if _, err := m.Complete(context.Background(), Request{System: "explode"}); err == nil {
		t.Fatalf("expected scripted error")
	}
	resp, _ = m.Complete(context.Background(), Request{Prompt: "other"})
	if resp.Content != `{"fallback":true}` {
		t.Fatalf("expected default response, got %q", resp.Content)
	}
	if m.CallCount() != 3 {
		t.Fatalf("expected 3 calls, got %d", m.CallCount())
	}
}

type flakyAdapter struct {
	calls    int
	failures int
	err      error
}

func (a *flakyAdapter) Complete(_ context.Context, req Request) (*Response, error) {
	a.calls++
	if a.calls <= a.failures {
		return nil, a.err
	}
	return newResponse("ok", "flaky", req.Model, nil), nil
}

func (a *flakyAdapter) Name() string { return "flaky" }

func (a *flakyAdapter) Models() []string { return []string{"m"} }

func TestRegistryAlwaysHasMock(t *testing.T) {
	r := NewRegistry(Credentials{}, nil)
	if _, ok := r.Get("mock"); !ok {
		t.Fatalf("expected mock adapter to be registered")
	}
	if _, err := r.MustGet("anthropic"); err == nil {
		t.Fatalf("expected anthropic to be unavailable without a key")
	}

	r.Register(&flakyAdapter{})
	names := r.Names()
	if len(names) != 2 || names[0] != "flaky" || names[1] != "mock" {
		t.Fatalf("unexpected names %v", names)
	}
}
