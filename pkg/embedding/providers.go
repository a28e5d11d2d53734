package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"google.golang.org/genai"
)

// Config selects and configures an embedding provider.
type Config struct {
	Provider     string
	Model        string
	Dimension    int
	OpenAIAPIKey string
	GoogleAPIKey string
	OllamaHost   string
}

// New creates the configured provider. Provider "fallback" or "" yields nil, which a
// Generator treats as offline mode.
func New(cfg Config) (Embedder, error) {
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimensionFor(cfg.Provider)
	}
	switch cfg.Provider {
	case "", "fallback":
		return nil, nil
	case "openai":
		return NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.Model, cfg.Dimension)
	case "google":
		return NewGoogleEmbedder(cfg.GoogleAPIKey, cfg.Model, cfg.Dimension)
	case "ollama":
		return NewOllamaEmbedder(cfg.OllamaHost, cfg.Model, cfg.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// DefaultDimensionFor returns the native vector length of a provider's default model.
func DefaultDimensionFor(provider string) int {
	switch provider {
	case "google", "ollama":
		return 768
	default:
		return DefaultDimension
	}
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint with a requested dimension.
type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	dimension int
}

// NewOpenAIEmbedder creates an OpenAI embedder.
func NewOpenAIEmbedder(apiKey, model string, dimension int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key required")
	}
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	return &OpenAIEmbedder{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		dimension: dimension,
	}, nil
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: openai.Int(int64(e.dimension)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Model implements Embedder.
func (e *OpenAIEmbedder) Model() string { return e.model }

// Dimension implements Embedder.
func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

// GoogleEmbedder calls the Gemini embed content API.
type GoogleEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
}

// NewGoogleEmbedder creates a Gemini embedder with its own client.
func NewGoogleEmbedder(apiKey, model string, dimension int) (*GoogleEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key required")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create google client: %w", err)
	}
	return NewGoogleEmbedderWithClient(client, model, dimension), nil
}

// NewGoogleEmbedderWithClient reuses an existing genai client.
func NewGoogleEmbedderWithClient(client *genai.Client, model string, dimension int) *GoogleEmbedder {
	if model == "" {
		model = "text-embedding-004"
	}
	return &GoogleEmbedder{client: client, model: model, dimension: dimension}
}

// Embed implements Embedder.
func (e *GoogleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	dim := int32(e.dimension)
	resp, err := e.client.Models.EmbedContent(ctx, e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{OutputDimensionality: &dim},
	)
	if err != nil {
		return nil, fmt.Errorf("google embed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Embeddings[0].Values, nil
}

// Model implements Embedder.
func (e *GoogleEmbedder) Model() string { return e.model }

// Dimension implements Embedder.
func (e *GoogleEmbedder) Dimension() int { return e.dimension }

// OllamaEmbedder embeds with a local model through langchaingo.
type OllamaEmbedder struct {
	embedder  embeddings.Embedder
	model     string
	dimension int
}

// NewOllamaEmbedder creates an embedder for a local Ollama server.
func NewOllamaEmbedder(serverURL, model string, dimension int) (*OllamaEmbedder, error) {
	if model == "" {
		model = "nomic-embed-text"
	}
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	emb, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}
	return &OllamaEmbedder{embedder: emb, model: model, dimension: dimension}, nil
}

// Embed implements Embedder.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	return vec, nil
}

// Model implements Embedder.
func (e *OllamaEmbedder) Model() string { return e.model }

// Dimension implements Embedder.
func (e *OllamaEmbedder) Dimension() int { return e.dimension }
