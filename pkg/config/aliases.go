package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ModelAliases manages model alias resolution and validation.
type ModelAliases struct {
	Aliases   map[string]string   `yaml:"aliases"`
	Providers map[string][]string `yaml:"providers"`
}

// LoadAliases reads model aliases from a YAML file.
func LoadAliases(path string) (*ModelAliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var aliases ModelAliases
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, err
	}

	if aliases.Aliases == nil {
		aliases.Aliases = make(map[string]string)
	}
	if aliases.Providers == nil {
		aliases.Providers = make(map[string][]string)
	}

	return &aliases, nil
}

// LoadAliasesFromDir loads models.yaml from the config dir, falling back to
// DefaultAliases when the file does not exist.
func LoadAliasesFromDir(configDir string) (*ModelAliases, error) {
	path := filepath.Join(configDir, "models.yaml")
	if _, err := os.Stat(path); err != nil {
		return DefaultAliases(), nil
	}
	return LoadAliases(path)
}

// Resolve returns the canonical model name for an alias.
// If the input is not an alias, it returns the input unchanged.
func (a *ModelAliases) Resolve(modelOrAlias string) string {
	if a == nil || a.Aliases == nil {
		return modelOrAlias
	}
	if canonical, ok := a.Aliases[modelOrAlias]; ok {
		return canonical
	}
	return modelOrAlias
}

// ValidateModel checks if a model exists in the provider's list.
// Returns nil if valid, or an error describing the problem.
func (a *ModelAliases) ValidateModel(adapter, model string) error {
	if a == nil || a.Providers == nil {
		return nil
	}

	models, ok := a.Providers[adapter]
	if !ok {
		return fmt.Errorf("unknown adapter %q", adapter)
	}
	// An empty list accepts any model; local runtimes serve whatever is pulled.
	if len(models) == 0 {
		return nil
	}

	for _, m := range models {
		if m == model {
			return nil
		}
	}

	return fmt.Errorf("model %q not in %s provider list", model, adapter)
}

// ValidatePipelineConfig checks every role target of a pipeline config.
// Returns a slice of validation errors (empty if all valid).
func (a *ModelAliases) ValidatePipelineConfig(cfg *PipelineConfig) []error {
	if a == nil || cfg == nil {
		return nil
	}

	var errs []error
	check := func(name string, target RouteTarget) {
		target = cfg.Resolve(target)
		if target.Adapter == "mock" {
			return
		}
		if err := a.ValidateModel(target.Adapter, a.Resolve(target.Model)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	check("default", cfg.Default)
	check("evaluator", cfg.Roles.Evaluator)
	check("arbiter", cfg.Roles.Arbiter)
	check("drafter", cfg.Roles.Drafter)
	check("validator", cfg.Roles.Validator)
	check("summarizer", cfg.Roles.Summarizer)
	check("detector", cfg.Roles.Detector)

	return errs
}

// DefaultAliases returns the default model aliases configuration.
func DefaultAliases() *ModelAliases {
	return &ModelAliases{
		Aliases: map[string]string{
			"quality": "claude-sonnet-4-20250514",
			"fast":    "claude-3-5-haiku-latest",
			"cheap":   "deepseek-chat",
			"mini":    "gpt-4o-mini",
			"gemini":  "gemini-2.0-flash",
			"local":   "llama3.1",
		},
		Providers: map[string][]string{
			"anthropic": {"claude-sonnet-4-20250514", "claude-opus-4-20250514", "claude-3-5-haiku-latest"},
			"openai":    {"gpt-4o", "gpt-4o-mini"},
			"google":    {"gemini-2.0-flash", "gemini-2.0-pro"},
			"deepseek":  {"deepseek-chat", "deepseek-reasoner"},
			"ollama":    {},
		},
	}
}
