package config

import "time"

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderGoogle    ProviderType = "google"
	ProviderAnthropic ProviderType = "anthropic"
)

// ProviderSettings holds per-provider connection settings. An empty
// APIKey falls back to the provider's conventional environment
// variable at call time.
type ProviderSettings struct {
	APIKey         string `yaml:"api_key,omitempty" koanf:"api_key"`
	BaseURL        string `yaml:"base_url,omitempty" koanf:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty" koanf:"timeout_seconds"`
	Retries        int    `yaml:"retries,omitempty" koanf:"retries"`
	RPM            int    `yaml:"rpm,omitempty" koanf:"rpm"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" koanf:"host"`
	Port int    `yaml:"port" koanf:"port"`
}

// EvalDefaults holds the default knobs for evaluation runs.
type EvalDefaults struct {
	Loops        int     `yaml:"loops" koanf:"loops"`
	MaxLoops     int     `yaml:"max_loops" koanf:"max_loops"`
	Threshold    float64 `yaml:"threshold" koanf:"threshold"`
	StageDelayMS int     `yaml:"stage_delay_ms" koanf:"stage_delay_ms"`
	PromptModel  string  `yaml:"prompt_model" koanf:"prompt_model"`
	AnswerModel  string  `yaml:"answer_model" koanf:"answer_model"`
	ScoringModel string  `yaml:"scoring_model" koanf:"scoring_model"`
}

// Config is the top-level promptlab configuration, corresponding to
// .promptlab.yml.
type Config struct {
	DefaultModel string                            `yaml:"default_model" koanf:"default_model"`
	ProjectDir   string                            `yaml:"project_dir" koanf:"project_dir"`
	OutputDir    string                            `yaml:"output_dir" koanf:"output_dir"`
	HistoryDB    string                            `yaml:"history_db" koanf:"history_db"`
	MCPServerURL string                            `yaml:"mcp_server_url,omitempty" koanf:"mcp_server_url"`
	Providers    map[ProviderType]ProviderSettings `yaml:"providers" koanf:"providers"`
	Server       ServerConfig                      `yaml:"server" koanf:"server"`
	Eval         EvalDefaults                      `yaml:"eval" koanf:"eval"`
}

// Timeout returns the provider timeout as a duration.
func (p ProviderSettings) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}
