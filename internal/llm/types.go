package llm

import "time"

// Role identifies the sender of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
	RoleTool      Role = "tool"
)

// ChatMessage is a single message in a conversation. Messages are
// value types; once built they are never mutated.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

// GenerationParams are the provider-independent sampling knobs for a
// completion. Pointer fields distinguish "not set" from an explicit
// zero so adapters only validate what the caller actually supplied.
// Extra carries provider-specific parameters that the shared model
// does not interpret; adapters pass through the keys they recognize.
type GenerationParams struct {
	Temperature      *float64       `json:"temperature,omitempty"`
	TopP             *float64       `json:"top_p,omitempty"`
	TopK             *int           `json:"top_k,omitempty"`
	MaxTokens        *int           `json:"max_tokens,omitempty"`
	Stop             []string       `json:"stop,omitempty"`
	PresencePenalty  *float64       `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64       `json:"frequency_penalty,omitempty"`
	SystemPrompt     string         `json:"system_prompt,omitempty"`
	Stream           bool           `json:"stream,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// ChatRequest is the universal input to every adapter.
type ChatRequest struct {
	Messages []ChatMessage
	Params   GenerationParams
}

// Usage reports token consumption for one completed call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the universal output of a completed call, whether it
// was produced in one shot or assembled from streamed chunks.
type ChatResponse struct {
	ID           string `json:"id"`
	Content      string `json:"content"`
	Role         Role   `json:"role"`
	FinishReason string `json:"finish_reason"`
	Usage        *Usage `json:"usage,omitempty"`
	Model        string `json:"model,omitempty"`
}

// ResponseChunk is one fragment of a streamed response. The final
// chunk of a stream typically carries FinishReason and Usage.
type ResponseChunk struct {
	ID           string `json:"id,omitempty"`
	Content      string `json:"content,omitempty"`
	Role         Role   `json:"role,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
}

// ValidationResult is the outcome of parameter validation. Normalized
// holds the parameters renamed into the provider's wire vocabulary
// (e.g. maxTokens becomes max_tokens or maxOutputTokens) and is only
// populated when Valid is true.
type ValidationResult struct {
	Valid      bool
	Errors     []string
	Warnings   []string
	Normalized map[string]any
}

// Capabilities are the feature flags of one model.
type Capabilities struct {
	Streaming       bool `json:"streaming"`
	FunctionCalling bool `json:"function_calling"`
	Vision          bool `json:"vision"`
	JSONMode        bool `json:"json_mode"`
	ContextTokens   int  `json:"context_tokens"`
}

// Pricing holds per-model pricing in USD per 1M tokens.
type Pricing struct {
	InputPerMillion  float64 `json:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million"`
}

// ModelDescriptor is the static metadata for one logical model id.
// Descriptors are registered once at startup and read-only afterwards.
type ModelDescriptor struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Provider      string           `json:"provider"`
	Capabilities  Capabilities     `json:"capabilities"`
	DefaultParams GenerationParams `json:"default_params"`
	AcceptedParams []string        `json:"accepted_params"`
	Pricing       *Pricing         `json:"pricing,omitempty"`
}

// ProviderConfig holds the credentials and transport options for one
// provider. It is loaded from the environment or the config file and
// owned by the registry.
type ProviderConfig struct {
	APIKey  string            `json:"api_key"`
	BaseURL string            `json:"base_url,omitempty"`
	Timeout time.Duration     `json:"timeout,omitempty"`
	Retries int               `json:"retries,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	RPM     int               `json:"rpm,omitempty"`
}

// Float64 returns a pointer to v. Convenience for building params.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
