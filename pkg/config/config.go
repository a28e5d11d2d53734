package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	DeepSeekAPIKey  string
	OllamaHost      string
	LogFile         string
	LogLevel        slog.Level
	Pipeline        *PipelineConfig
	ConfigDir       string
}

// FileConfig represents the structure of ~/.triage/config.yaml
type FileConfig struct {
	APIKeys    APIKeysConfig `yaml:"api_keys"`
	OllamaHost string        `yaml:"ollama_host"`
	LogFile    string        `yaml:"log_file"`
	LogLevel   string        `yaml:"log_level"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"`
	OpenAI    string `yaml:"openai"`
	Google    string `yaml:"google"`
	DeepSeek  string `yaml:"deepseek"`
}

// Load reads configuration from config files and environment variables.
// Environment variables take precedence over file configuration.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	cfg := buildConfig(configDir)

	pipelinePath := filepath.Join(configDir, "pipeline.yaml")
	if _, err := os.Stat(pipelinePath); err == nil {
		pipeline, err := LoadPipelineConfig(pipelinePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load pipeline config: %w", err)
		}
		cfg.Pipeline = pipeline
	} else {
		cfg.Pipeline = DefaultPipelineConfig()
	}
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadWithPipelineFile loads config with a specific pipeline file.
func LoadWithPipelineFile(pipelinePath string) (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	cfg := buildConfig(configDir)

	pipeline, err := LoadPipelineConfig(pipelinePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline config from %s: %w", pipelinePath, err)
	}
	cfg.Pipeline = pipeline
	applyEnvOverrides(cfg)

	return cfg, nil
}

func buildConfig(configDir string) *Config {
	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	return &Config{
		AnthropicAPIKey: getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		OpenAIAPIKey:    getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		GoogleAPIKey:    getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		DeepSeekAPIKey:  getEnvOrDefault("DEEPSEEK_API_KEY", fileConfig.APIKeys.DeepSeek),
		OllamaHost:      getEnvOrDefault("OLLAMA_HOST", fileConfig.OllamaHost),
		LogFile:         getEnvOrDefault("TRIAGE_LOG_FILE", fileConfig.LogFile),
		LogLevel:        ParseLogLevel(getEnvOrDefault("TRIAGE_LOG_LEVEL", fileConfig.LogLevel)),
		ConfigDir:       configDir,
	}
}

func applyEnvOverrides(cfg *Config) {
	if path := os.Getenv("TRIAGE_STORE_PATH"); path != "" {
		cfg.Pipeline.Store.Path = path
	}
	if cfg.Pipeline.Store.Path == "" {
		cfg.Pipeline.Store.Path = filepath.Join(cfg.ConfigDir, "vectors")
	}
}

// HasAdapter returns true if the given adapter can be constructed from this config.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	case "deepseek":
		return c.DeepSeekAPIKey != ""
	case "ollama":
		return c.OllamaHost != ""
	case "mock":
		return true
	default:
		return false
	}
}

// ParseLogLevel maps a level name to a slog level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, cfg) // Ignore parse errors, use defaults
	return cfg
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".triage")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
