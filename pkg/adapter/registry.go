package adapter

import (
	"fmt"
	"log/slog"
	"sort"
)

// Credentials holds what the registry needs to construct provider adapters.
type Credentials struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	DeepSeekAPIKey  string
	OllamaHost      string
}

// Registry maps adapter names to constructed adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds every adapter the credentials allow. The mock adapter is always
// registered. A provider whose client cannot be created is logged and skipped.
func NewRegistry(creds Credentials, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{adapters: make(map[string]Adapter)}

	if creds.AnthropicAPIKey != "" {
		if a, err := NewAnthropicAdapter(creds.AnthropicAPIKey); err == nil {
			r.Register(a)
		} else {
			logger.Warn("anthropic adapter unavailable", slog.String("error", err.Error()))
		}
	}
	if creds.OpenAIAPIKey != "" {
		if a, err := NewOpenAIAdapter(creds.OpenAIAPIKey); err == nil {
			r.Register(a)
		} else {
			logger.Warn("openai adapter unavailable", slog.String("error", err.Error()))
		}
	}
	if creds.GoogleAPIKey != "" {
		if a, err := NewGoogleAdapter(creds.GoogleAPIKey); err == nil {
			r.Register(a)
		} else {
			logger.Warn("google adapter unavailable", slog.String("error", err.Error()))
		}
	}
	if creds.DeepSeekAPIKey != "" {
		if a, err := NewDeepSeekAdapter(creds.DeepSeekAPIKey); err == nil {
			r.Register(a)
		} else {
			logger.Warn("deepseek adapter unavailable", slog.String("error", err.Error()))
		}
	}
	if creds.OllamaHost != "" {
		if a, err := NewOllamaAdapter(creds.OllamaHost, ""); err == nil {
			r.Register(a)
		} else {
			logger.Warn("ollama adapter unavailable", slog.String("error", err.Error()))
		}
	}

	r.Register(NewMockAdapter())
	return r
}

// Register adds or replaces an adapter under its own name.
func (r *Registry) Register(a Adapter) {
	if a == nil {
		return
	}
	r.adapters[a.Name()] = a
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// MustGet returns the adapter registered under name or an error naming what is available.
func (r *Registry) MustGet(name string) (Adapter, error) {
	if a, ok := r.adapters[name]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("adapter %q not available (have %v)", name, r.Names())
}

// Names returns the registered adapter names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
