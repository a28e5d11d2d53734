package adapter

import (
	"context"
	"strings"
	"sync"
)

// MockRule scripts a response for any request whose system or user text contains Contains.
type MockRule struct {
	Contains string
	Response string
	Err      error
}

// MockAdapter returns deterministic responses for offline runs and tests.
// It is safe for concurrent use.
type MockAdapter struct {
	mu              sync.Mutex
	rules           []MockRule
	defaultResponse string
	calls           []Request
	Usage           *Usage
}

// NewMockAdapter creates a mock adapter whose default response is an empty JSON object,
// which every structured parser in the pipeline rejects.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{defaultResponse: "{}"}
}

// NewMockAdapterWithRules creates a mock adapter with scripted responses.
func NewMockAdapterWithRules(defaultResponse string, rules ...MockRule) *MockAdapter {
	if defaultResponse == "" {
		defaultResponse = "{}"
	}
	return &MockAdapter{rules: rules, defaultResponse: defaultResponse}
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Complete returns the first matching scripted response, or the default.
func (a *MockAdapter) Complete(_ context.Context, req Request) (*Response, error) {
	model := ModelOrDefault(a, req.Model)

	a.mu.Lock()
	a.calls = append(a.calls, req)
	rules := a.rules
	a.mu.Unlock()

	text := req.System + "\n" + req.Prompt
	for _, rule := range rules {
		if rule.Contains != "" && !strings.Contains(text, rule.Contains) {
			continue
		}
		if rule.Err != nil {
			return nil, rule.Err
		}
		return newResponse(rule.Response, a.Name(), model, a.Usage), nil
	}
	return newResponse(a.defaultResponse, a.Name(), model, a.Usage), nil
}

// Calls returns a copy of every request received so far.
func (a *MockAdapter) Calls() []Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Request, len(a.calls))
	copy(out, a.calls)
	return out
}

// CallCount returns the number of requests received so far.
func (a *MockAdapter) CallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}
