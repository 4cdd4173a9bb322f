package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/ziadkadry99/promptlab/internal/llm"
)

// DefaultPath is the conventional config file location.
const DefaultPath = ".promptlab.yml"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (PROMPTLAB_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: PROMPTLAB_OUTPUT_DIR -> output_dir.
	if err := k.Load(env.Provider("PROMPTLAB_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "PROMPTLAB_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validProviders = map[ProviderType]bool{
	ProviderOpenAI:    true,
	ProviderGoogle:    true,
	ProviderAnthropic: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.DefaultModel == "" {
		return fmt.Errorf("default_model is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	for name, p := range c.Providers {
		if !validProviders[name] {
			return fmt.Errorf("invalid provider %q: must be one of openai, google, anthropic", name)
		}
		if p.TimeoutSeconds < 0 {
			return fmt.Errorf("provider %s: timeout_seconds must be non-negative", name)
		}
		if p.Retries < 0 {
			return fmt.Errorf("provider %s: retries must be non-negative", name)
		}
		if p.RPM < 0 {
			return fmt.Errorf("provider %s: rpm must be non-negative", name)
		}
	}
	if c.Eval.Loops < 1 {
		return fmt.Errorf("eval.loops must be at least 1")
	}
	if c.Eval.MaxLoops < c.Eval.Loops {
		return fmt.Errorf("eval.max_loops must be at least eval.loops")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid port number")
	}
	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// ProviderConfig implements llm.ConfigSource. Keys missing from the
// config file fall back to the provider's environment variable.
func (c *Config) ProviderConfig(providerID string) (llm.ProviderConfig, error) {
	provider := ProviderType(providerID)
	settings := c.Providers[provider]

	apiKey := settings.APIKey
	if apiKey == "" {
		if envVar := APIKeyEnvVar(provider); envVar != "" {
			apiKey = os.Getenv(envVar)
		}
	}
	if apiKey == "" {
		return llm.ProviderConfig{}, fmt.Errorf("no API key for provider %s: set providers.%s.api_key or %s", provider, provider, APIKeyEnvVar(provider))
	}

	return llm.ProviderConfig{
		APIKey:  apiKey,
		BaseURL: settings.BaseURL,
		Timeout: settings.Timeout(),
		Retries: settings.Retries,
		RPM:     settings.RPM,
	}, nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultModel: "gpt-4o-mini",
		ProjectDir:   ".",
		OutputDir:    "results",
		HistoryDB:    ".promptlab.db",
		Providers: map[ProviderType]ProviderSettings{
			ProviderOpenAI:    {TimeoutSeconds: 120, Retries: 3},
			ProviderGoogle:    {TimeoutSeconds: 120, Retries: 3},
			ProviderAnthropic: {TimeoutSeconds: 120, Retries: 3},
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8321,
		},
		Eval: EvalDefaults{
			Loops:        1,
			MaxLoops:     10,
			Threshold:    0,
			StageDelayMS: 1500,
			PromptModel:  "gpt-4o",
			AnswerModel:  "gpt-4o-mini",
			ScoringModel: "gpt-4o",
		},
	}
}
