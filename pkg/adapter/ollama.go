package adapter

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// DefaultOllamaModel is the local chat model used when none is configured.
const DefaultOllamaModel = "llama3.1"

// OllamaAdapter implements the Adapter interface for a local Ollama server via langchaingo.
type OllamaAdapter struct {
	serverURL string
	model     string
	llm       llms.Model
}

// NewOllamaAdapter creates an adapter bound to one local model.
func NewOllamaAdapter(serverURL, model string) (*OllamaAdapter, error) {
	if model == "" {
		model = DefaultOllamaModel
	}
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	return &OllamaAdapter{serverURL: serverURL, model: model, llm: llm}, nil
}

// Name returns the adapter identifier.
func (a *OllamaAdapter) Name() string {
	return "ollama"
}

// Models returns the single model this adapter was created for.
func (a *OllamaAdapter) Models() []string {
	return []string{a.model}
}

// Complete runs a system+human exchange against the local model.
// A model other than the bound one gets its own client for the call.
func (a *OllamaAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	llm := a.llm
	model := a.model
	if req.Model != "" && req.Model != a.model {
		other, err := NewOllamaAdapter(a.serverURL, req.Model)
		if err != nil {
			return nil, err
		}
		llm, model = other.llm, other.model
	}

	messages := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	opts := []llms.CallOption{llms.WithMaxTokens(req.maxTokens())}
	if req.JSON {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("ollama returned no choices")
	}
	return newResponse(resp.Choices[0].Content, a.Name(), model, nil), nil
}
