package adapter

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DeepSeekBaseURL is the OpenAI-compatible DeepSeek endpoint.
const DeepSeekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekAdapter talks to DeepSeek through its OpenAI-compatible chat API.
type DeepSeekAdapter struct {
	client openai.Client
}

// NewDeepSeekAdapter creates a new DeepSeek adapter.
func NewDeepSeekAdapter(apiKey string, opts ...option.RequestOption) (*DeepSeekAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepseek API key is required")
	}

	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(DeepSeekBaseURL),
	}
	client := openai.NewClient(append(base, opts...)...)
	return &DeepSeekAdapter{client: client}, nil
}

// Name returns the adapter identifier.
func (a *DeepSeekAdapter) Name() string {
	return "deepseek"
}

// Models returns the list of supported DeepSeek models.
func (a *DeepSeekAdapter) Models() []string {
	return []string{
		"deepseek-chat",
		"deepseek-reasoner",
	}
}

// Complete sends a chat request to DeepSeek. DeepSeek reads max_tokens rather than
// max_completion_tokens.
func (a *DeepSeekAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	model := ModelOrDefault(a, req.Model)
	params := chatParams(model, req)
	params.MaxTokens = openai.Int(int64(req.maxTokens()))
	return chatComplete(ctx, a.client, a.Name(), model, params)
}
