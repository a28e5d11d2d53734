package adapter

import (
	"context"
)

// Adapter defines the completion capability the triage pipeline consumes.
type Adapter interface {
	// Complete sends a request to the model and returns its text output.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// Request is a single completion call.
type Request struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int
	// JSON asks providers that support it to constrain output to a JSON object.
	JSON bool
}

// DefaultMaxTokens bounds completions when a request leaves MaxTokens unset.
const DefaultMaxTokens = 2048

func (r Request) maxTokens() int {
	if r.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return r.MaxTokens
}

// ModelOrDefault returns the request model, or the adapter's first model when unset.
func ModelOrDefault(a Adapter, model string) string {
	if model != "" {
		return model
	}
	if models := a.Models(); len(models) > 0 {
		return models[0]
	}
	return ""
}
