package adapter

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIAdapter implements the Adapter interface for OpenAI models.
type OpenAIAdapter struct {
	client openai.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter(apiKey string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIAdapter{client: client}, nil
}

// Name returns the adapter identifier.
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// Models returns the list of supported OpenAI models.
func (a *OpenAIAdapter) Models() []string {
	return []string{
		"gpt-4o-mini",
		"gpt-4o",
	}
}

// Complete sends a chat completion request to OpenAI.
func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	model := ModelOrDefault(a, req.Model)
	params := chatParams(model, req)
	params.MaxCompletionTokens = openai.Int(int64(req.maxTokens()))
	return chatComplete(ctx, a.client, a.Name(), model, params)
}

// chatParams builds an OpenAI-compatible chat request without a token limit.
func chatParams(model string, req Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}

// chatComplete runs a chat completion against any OpenAI-compatible endpoint.
func chatComplete(ctx context.Context, client openai.Client, name, model string, params openai.ChatCompletionNewParams) (*Response, error) {
	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapProviderError(name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", name)
	}

	usage := &Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	return newResponse(resp.Choices[0].Message.Content, name, model, usage), nil
}
