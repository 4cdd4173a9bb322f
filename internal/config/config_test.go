package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultModel != "gpt-4o-mini" {
		t.Errorf("expected default model, got %q", cfg.DefaultModel)
	}
	if cfg.Eval.StageDelayMS != 1500 {
		t.Errorf("expected default stage delay 1500, got %d", cfg.Eval.StageDelayMS)
	}
	if cfg.Server.Port != 8321 {
		t.Errorf("expected default port 8321, got %d", cfg.Server.Port)
	}
}

func TestLoadReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promptlab.yml")
	content := `default_model: claude-sonnet-4-5-20250929
output_dir: out
providers:
  anthropic:
    api_key: file-key
    rpm: 30
eval:
  loops: 3
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultModel != "claude-sonnet-4-5-20250929" {
		t.Errorf("expected model from file, got %q", cfg.DefaultModel)
	}
	if cfg.OutputDir != "out" {
		t.Errorf("expected output dir 'out', got %q", cfg.OutputDir)
	}
	if cfg.Providers[ProviderAnthropic].APIKey != "file-key" {
		t.Errorf("expected provider key from file, got %q", cfg.Providers[ProviderAnthropic].APIKey)
	}
	if cfg.Providers[ProviderAnthropic].RPM != 30 {
		t.Errorf("expected rpm 30, got %d", cfg.Providers[ProviderAnthropic].RPM)
	}
	if cfg.Eval.Loops != 3 {
		t.Errorf("expected loops 3, got %d", cfg.Eval.Loops)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promptlab.yml")
	if err := os.WriteFile(path, []byte("default_model: from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PROMPTLAB_DEFAULT_MODEL", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultModel != "from-env" {
		t.Errorf("expected env override, got %q", cfg.DefaultModel)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promptlab.yml")
	cfg := DefaultConfig()
	cfg.DefaultModel = "gemini-2.0-flash"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.DefaultModel != "gemini-2.0-flash" {
		t.Errorf("expected saved model, got %q", loaded.DefaultModel)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}

	cfg.DefaultModel = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty default_model")
	}

	cfg = DefaultConfig()
	cfg.Providers[ProviderType("bogus")] = ProviderSettings{}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown provider")
	}

	cfg = DefaultConfig()
	cfg.Eval.Loops = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero loops")
	}

	cfg = DefaultConfig()
	cfg.Eval.MaxLoops = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for max_loops below loops")
	}
}

func TestProviderConfigFallsBackToEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	cfg := DefaultConfig()

	pc, err := cfg.ProviderConfig("anthropic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pc.APIKey != "env-key" {
		t.Errorf("expected env fallback key, got %q", pc.APIKey)
	}
	if pc.Retries != 3 {
		t.Errorf("expected default retries, got %d", pc.Retries)
	}
}

func TestProviderConfigPrefersFileKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	cfg := DefaultConfig()
	cfg.Providers[ProviderOpenAI] = ProviderSettings{APIKey: "file-key", TimeoutSeconds: 60}

	pc, err := cfg.ProviderConfig("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pc.APIKey != "file-key" {
		t.Errorf("expected file key to win, got %q", pc.APIKey)
	}
}

func TestProviderConfigMissingKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	cfg := DefaultConfig()

	if _, err := cfg.ProviderConfig("google"); err == nil {
		t.Error("expected error when no key is configured anywhere")
	}
}
