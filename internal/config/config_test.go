package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "AI Arbiter" {
		t.Errorf("expected Name=AI Arbiter, got %s", cfg.Name)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("expected Provider=anthropic, got %s", cfg.LLM.Provider)
	}
	if cfg.Engine.MaxRounds != 8 {
		t.Errorf("expected MaxRounds=8, got %d", cfg.Engine.MaxRounds)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	// Ensure no env vars interfere
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ARBITER_API_KEY", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "arbiter.yaml")

	cfg := DefaultConfig()
	cfg.LLM.APIKey = "sk-test"
	cfg.Server.Addr = ":9090"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.LLM.APIKey != "sk-test" {
		t.Errorf("expected APIKey=sk-test, got %s", loaded.LLM.APIKey)
	}
	if loaded.Server.Addr != ":9090" {
		t.Errorf("expected Addr=:9090, got %s", loaded.Server.Addr)
	}
}

func TestConfig_LoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ARBITER_API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != DefaultConfig().Server.Addr {
		t.Errorf("expected default addr, got %s", cfg.Server.Addr)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-anthropic-key")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ARBITER_API_KEY", "")
	t.Setenv("ARBITER_MODEL", "claude-test-model")
	t.Setenv("ARBITER_ADDR", ":7070")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "arbiter.yaml")

	cfg := DefaultConfig()
	cfg.LLM.APIKey = "file-key"
	cfg.Server.Addr = ":8084"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.LLM.APIKey != "env-anthropic-key" {
		t.Errorf("env key should win over file, got %s", loaded.LLM.APIKey)
	}
	if loaded.LLM.Provider != "anthropic" {
		t.Errorf("expected provider anthropic, got %s", loaded.LLM.Provider)
	}
	if loaded.LLM.Model != "claude-test-model" {
		t.Errorf("expected model override, got %s", loaded.LLM.Model)
	}
	if loaded.Server.Addr != ":7070" {
		t.Errorf("expected addr override, got %s", loaded.Server.Addr)
	}
}

func TestConfig_ArbiterKeyOverridesProviderKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "provider-key")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ARBITER_API_KEY", "explicit-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "explicit-key" {
		t.Errorf("ARBITER_API_KEY should win, got %s", cfg.LLM.APIKey)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing API key")
	}

	cfg.LLM.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.LLM.Provider = "bedrock"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown provider")
	}

	cfg.LLM.Provider = "openai"
	cfg.Engine.MaxRounds = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-positive max_rounds")
	}
}

func TestConfig_DurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "not-a-duration"
	cfg.Server.RequestBudget = ""
	cfg.Engine.ToolTimeout = "bogus"

	if got := cfg.GetLLMTimeout().Seconds(); got != 120 {
		t.Errorf("expected 120s fallback, got %vs", got)
	}
	if got := cfg.GetRequestBudget().Minutes(); got != 5 {
		t.Errorf("expected 5m fallback, got %vm", got)
	}
	if got := cfg.GetToolTimeout().Minutes(); got != 2 {
		t.Errorf("expected 2m fallback, got %vm", got)
	}
}
