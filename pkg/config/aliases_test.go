package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveAlias(t *testing.T) {
	aliases := DefaultAliases()

	if got := aliases.Resolve("quality"); got != "claude-sonnet-4-20250514" {
		t.Fatalf("Resolve(quality) = %q", got)
	}
	if got := aliases.Resolve("gpt-4o"); got != "gpt-4o" {
		t.Fatalf("non-alias should pass through, got %q", got)
	}

	var nilAliases *ModelAliases
	if got := nilAliases.Resolve("fast"); got != "fast" {
		t.Fatalf("nil aliases should pass through, got %q", got)
	}
}

func TestValidateModel(t *testing.T) {
	aliases := DefaultAliases()

	tests := []struct {
		adapter string
		model   string
		wantErr bool
	}{
		{"anthropic", "claude-sonnet-4-20250514", false},
		{"anthropic", "gpt-4o", true},
		{"unknown", "anything", true},
		{"ollama", "mistral", false},
	}
	for _, tt := range tests {
		err := aliases.ValidateModel(tt.adapter, tt.model)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ValidateModel(%s, %s) err = %v, wantErr %v", tt.adapter, tt.model, err, tt.wantErr)
		}
	}
}

func TestValidatePipelineConfig(t *testing.T) {
	aliases := DefaultAliases()

	cfg := DefaultPipelineConfig()
	if errs := aliases.ValidatePipelineConfig(cfg); len(errs) != 0 {
		t.Fatalf("default pipeline should validate, got %v", errs)
	}

	cfg.Roles.Drafter = RouteTarget{Adapter: "openai", Model: "claude-opus-4-20250514"}
	cfg.Roles.Detector = RouteTarget{Adapter: "mock", Model: "anything"}
	errs := aliases.ValidatePipelineConfig(cfg)
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
}

func TestLoadAliasesFromDir(t *testing.T) {
	dir := t.TempDir()

	aliases, err := LoadAliasesFromDir(dir)
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	if aliases.Resolve("local") != "llama3.1" {
		t.Fatalf("expected default aliases when models.yaml is absent")
	}

	data := []byte("aliases:\n  triage: gpt-4o\nproviders:\n  openai: [gpt-4o]\n")
	if err := os.WriteFile(filepath.Join(dir, "models.yaml"), data, 0600); err != nil {
		t.Fatalf("write models.yaml: %v", err)
	}
	aliases, err = LoadAliasesFromDir(dir)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if aliases.Resolve("triage") != "gpt-4o" {
		t.Fatalf("expected file alias to resolve")
	}
	if aliases.Resolve("local") != "local" {
		t.Fatalf("file aliases replace the defaults")
	}
}
