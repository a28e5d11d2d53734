package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PipelineConfig holds the triage pipeline settings.
type PipelineConfig struct {
	Default            RouteTarget       `yaml:"default"`
	Roles              RolesConfig       `yaml:"roles"`
	Embedding          EmbeddingConfig   `yaml:"embedding"`
	Store              StoreConfig       `yaml:"store"`
	DefaultDepartment  string            `yaml:"default_department"`
	IDScheme           string            `yaml:"id_scheme,omitempty"`
	CallTimeoutSeconds int               `yaml:"call_timeout_seconds,omitempty"`
	MaxDraftAttempts   int               `yaml:"max_draft_attempts,omitempty"`
	PrecedentLimit     int               `yaml:"precedent_limit,omitempty"`
	DraftExampleLimit  int               `yaml:"draft_example_limit,omitempty"`
	MaxParallel        int               `yaml:"max_parallel,omitempty"`
	Retry              RetryConfig       `yaml:"retry,omitempty"`
	Fallback           FallbackConfig    `yaml:"fallback,omitempty"`
	ToneRules          map[string]string `yaml:"tone_rules,omitempty"`
	MisuseContexts     map[string]string `yaml:"misuse_contexts,omitempty"`
	Gates              GateConfig        `yaml:"gates,omitempty"`
	Pricing            PricingConfig     `yaml:"pricing,omitempty"`
}

// RouteTarget specifies an adapter and model combination.
type RouteTarget struct {
	Adapter string `yaml:"adapter"`
	Model   string `yaml:"model"`
}

// RolesConfig assigns a model to each pipeline role. Empty roles use the default target.
type RolesConfig struct {
	Evaluator  RouteTarget `yaml:"evaluator,omitempty"`
	Arbiter    RouteTarget `yaml:"arbiter,omitempty"`
	Drafter    RouteTarget `yaml:"drafter,omitempty"`
	Validator  RouteTarget `yaml:"validator,omitempty"`
	Summarizer RouteTarget `yaml:"summarizer,omitempty"`
	Detector   RouteTarget `yaml:"detector,omitempty"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model,omitempty"`
	Dimension int    `yaml:"dimension,omitempty"`
}

// StoreConfig configures the persistent vector store.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
	// MaxRecordBytes simulates a storage quota; records above it are degraded.
	MaxRecordBytes int  `yaml:"max_record_bytes,omitempty"`
	InMemory       bool `yaml:"in_memory,omitempty"`
}

// RetryConfig defines retry and backoff behavior.
type RetryConfig struct {
	MaxRetries    int `yaml:"max_retries,omitempty"`
	BaseBackoffMs int `yaml:"base_backoff_ms,omitempty"`
	MaxBackoffMs  int `yaml:"max_backoff_ms,omitempty"`
}

// FallbackConfig defines adapter/model fallbacks.
type FallbackConfig struct {
	AllowFallback bool                     `yaml:"allow_fallback,omitempty"`
	FallbackChain map[string][]RouteTarget `yaml:"fallback_chain,omitempty"`
}

// GateConfig tunes the local checks run on every draft before model review.
type GateConfig struct {
	Disabled      bool     `yaml:"disabled,omitempty"`
	MinLength     int      `yaml:"min_length,omitempty"`
	MaxLength     int      `yaml:"max_length,omitempty"`
	BannedPhrases []string `yaml:"banned_phrases,omitempty"`
}

// PricingConfig maps adapter -> model -> pricing.
type PricingConfig map[string]map[string]ModelPricing

// ModelPricing defines per-1k token pricing.
type ModelPricing struct {
	PromptPer1K     float64 `yaml:"prompt_per_1k,omitempty"`
	CompletionPer1K float64 `yaml:"completion_per_1k,omitempty"`
}

// LoadPipelineConfig reads pipeline configuration from a YAML file.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg PipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyPipelineDefaults(&cfg)
	return &cfg, nil
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() *PipelineConfig {
	cfg := &PipelineConfig{
		Default: RouteTarget{
			Adapter: "anthropic",
			Model:   "claude-sonnet-4-20250514",
		},
		Roles: RolesConfig{
			Summarizer: RouteTarget{Adapter: "anthropic", Model: "claude-3-5-haiku-latest"},
			Detector:   RouteTarget{Adapter: "anthropic", Model: "claude-3-5-haiku-latest"},
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		},
		DefaultDepartment: "General Support",
	}

	applyPipelineDefaults(cfg)
	return cfg
}

// CallTimeout is the per-call deadline applied to every completion.
func (c *PipelineConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// Resolve returns the target for a role, falling back to the default target.
func (c *PipelineConfig) Resolve(role RouteTarget) RouteTarget {
	if strings.TrimSpace(role.Adapter) == "" {
		return c.Default
	}
	return role
}

// ChainFor returns the configured fallback chain for a target, keyed either by
// "adapter/model" or by adapter name.
func (c *PipelineConfig) ChainFor(target RouteTarget) []RouteTarget {
	if !c.Fallback.AllowFallback || c.Fallback.FallbackChain == nil {
		return nil
	}
	if chain, ok := c.Fallback.FallbackChain[target.Adapter+"/"+target.Model]; ok {
		return chain
	}
	return c.Fallback.FallbackChain[target.Adapter]
}

func applyPipelineDefaults(cfg *PipelineConfig) {
	if cfg == nil {
		return
	}
	if cfg.Default.Adapter == "" {
		cfg.Default = RouteTarget{Adapter: "anthropic", Model: "claude-sonnet-4-20250514"}
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Dimension <= 0 {
		cfg.Embedding.Dimension = defaultEmbeddingDimension(cfg.Embedding.Provider)
	}
	if cfg.DefaultDepartment == "" {
		cfg.DefaultDepartment = "General Support"
	}
	if cfg.IDScheme == "" {
		cfg.IDScheme = "uuid"
	}
	if cfg.CallTimeoutSeconds <= 0 {
		cfg.CallTimeoutSeconds = 30
	}
	if cfg.MaxDraftAttempts <= 0 {
		cfg.MaxDraftAttempts = 3
	}
	if cfg.PrecedentLimit <= 0 || cfg.PrecedentLimit > 5 {
		cfg.PrecedentLimit = 5
	}
	if cfg.DraftExampleLimit <= 0 {
		cfg.DraftExampleLimit = 3
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 8
	}
	if cfg.Gates.MinLength == 0 {
		cfg.Gates.MinLength = 40
	}
	if cfg.Gates.MaxLength == 0 {
		cfg.Gates.MaxLength = 4000
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 2
	}
	if cfg.Retry.BaseBackoffMs == 0 {
		cfg.Retry.BaseBackoffMs = 200
	}
	if cfg.Retry.MaxBackoffMs == 0 {
		cfg.Retry.MaxBackoffMs = 2000
	}
	if cfg.Retry.MaxBackoffMs < cfg.Retry.BaseBackoffMs {
		cfg.Retry.MaxBackoffMs = cfg.Retry.BaseBackoffMs
	}
}

// defaultEmbeddingDimension is the native vector length of each provider's default model.
func defaultEmbeddingDimension(provider string) int {
	switch provider {
	case "google", "ollama":
		return 768
	default:
		return 1536
	}
}
