package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	anthropicAPIURL  = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

// AnthropicAdapter implements Adapter using the Anthropic Messages API
// via direct HTTP.
type AnthropicAdapter struct {
	model  ModelDescriptor
	apiKey string
	url    string
	client *http.Client
}

// NewAnthropicAdapter creates an adapter for an Anthropic model.
func NewAnthropicAdapter(model ModelDescriptor, cfg ProviderConfig) (Adapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key not configured")
	}
	url := anthropicAPIURL
	if cfg.BaseURL != "" {
		url = cfg.BaseURL + "/v1/messages"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	return &AnthropicAdapter{
		model:  model,
		apiKey: cfg.APIKey,
		url:    url,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (a *AnthropicAdapter) Descriptor() ModelDescriptor { return a.model }

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	TopK        *int               `json:"top_k,omitempty"`
	System      string             `json:"system,omitempty"`
	Stop        []string           `json:"stop_sequences,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// anthropicStreamEvent is the union shape of SSE events on a streaming
// messages response.
type anthropicStreamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		ID    string         `json:"id"`
		Usage anthropicUsage `json:"usage"`
	} `json:"message,omitempty"`
	Delta *struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta,omitempty"`
	Usage *anthropicUsage `json:"usage,omitempty"`
	Error *anthropicError `json:"error,omitempty"`
}

func (a *AnthropicAdapter) buildRequest(req ChatRequest, stream bool) anthropicRequest {
	params := req.Params

	maxTokens := 4096
	if params.MaxTokens != nil {
		maxTokens = *params.MaxTokens
	}

	// The Messages API takes the system prompt as a top-level field.
	system := params.SystemPrompt
	var messages []anthropicMessage
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case RoleUser:
			messages = append(messages, anthropicMessage{Role: "user", Content: msg.Content})
		case RoleAssistant:
			messages = append(messages, anthropicMessage{Role: "assistant", Content: msg.Content})
		}
	}

	return anthropicRequest{
		Model:       a.model.ID,
		MaxTokens:   maxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		TopK:        params.TopK,
		System:      system,
		Stop:        params.Stop,
		Stream:      stream,
		Messages:    messages,
	}
}

func (a *AnthropicAdapter) send(ctx context.Context, apiReq anthropicRequest) (*http.Response, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	return a.client.Do(httpReq)
}

func (a *AnthropicAdapter) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	httpResp, err := a.send(ctx, a.buildRequest(req, false))
	if err != nil {
		return nil, classifyError(err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyError(err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, statusError(httpResp.StatusCode, string(respBody))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, &CallError{Code: CodeBadResponse, Message: fmt.Sprintf("failed to unmarshal anthropic response: %v", err)}
	}
	if apiResp.Error != nil {
		return nil, &CallError{Code: CodeBadResponse, Message: fmt.Sprintf("anthropic API error (%s): %s", apiResp.Error.Type, apiResp.Error.Message)}
	}

	var content string
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &ChatResponse{
		ID:           apiResp.ID,
		Content:      content,
		Role:         RoleAssistant,
		FinishReason: apiResp.StopReason,
		Usage: &Usage{
			PromptTokens:     apiResp.Usage.InputTokens,
			CompletionTokens: apiResp.Usage.OutputTokens,
			TotalTokens:      apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
		},
		Model: apiResp.Model,
	}, nil
}

func (a *AnthropicAdapter) ChatStream(ctx context.Context, req ChatRequest) (ChunkStream, error) {
	httpResp, err := a.send(ctx, a.buildRequest(req, true))
	if err != nil {
		return nil, classifyError(err)
	}

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		return nil, statusError(httpResp.StatusCode, string(respBody))
	}

	var messageID string
	var inputTokens int
	return newLineStream(httpResp.Body, func(frame string) (ResponseChunk, bool, error) {
		data, ok := sseData(frame)
		if !ok {
			return ResponseChunk{}, false, nil
		}

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			// Skip frames we cannot decode rather than killing the stream.
			return ResponseChunk{}, false, nil
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				messageID = event.Message.ID
				inputTokens = event.Message.Usage.InputTokens
			}
			return ResponseChunk{}, false, nil
		case "content_block_delta":
			if event.Delta == nil || event.Delta.Text == "" {
				return ResponseChunk{}, false, nil
			}
			return ResponseChunk{ID: messageID, Content: event.Delta.Text, Role: RoleAssistant}, true, nil
		case "message_delta":
			chunk := ResponseChunk{ID: messageID, Role: RoleAssistant}
			if event.Delta != nil {
				chunk.FinishReason = event.Delta.StopReason
			}
			if event.Usage != nil {
				chunk.Usage = &Usage{
					PromptTokens:     inputTokens,
					CompletionTokens: event.Usage.OutputTokens,
					TotalTokens:      inputTokens + event.Usage.OutputTokens,
				}
			}
			return chunk, true, nil
		case "message_stop":
			return ResponseChunk{}, false, io.EOF
		case "error":
			if event.Error != nil {
				return ResponseChunk{}, false, &CallError{Code: CodeBadResponse, Message: fmt.Sprintf("anthropic stream error (%s): %s", event.Error.Type, event.Error.Message)}
			}
			return ResponseChunk{}, false, &CallError{Code: CodeBadResponse, Message: "anthropic stream error"}
		default:
			return ResponseChunk{}, false, nil
		}
	}), nil
}

func (a *AnthropicAdapter) ValidateParams(params GenerationParams) ValidationResult {
	var errs []string
	var warns []string
	validateUniversal(params, &errs)
	if params.TopK != nil && *params.TopK < 1 {
		errs = append(errs, "top_k must be at least 1")
	}
	if params.PresencePenalty != nil || params.FrequencyPenalty != nil {
		warns = append(warns, "anthropic models ignore presence_penalty and frequency_penalty")
	}
	result := ValidationResult{Valid: len(errs) == 0, Errors: errs, Warnings: warns}
	if result.Valid {
		result.Normalized = a.normalizeParams(params)
	}
	return result
}

// normalizeParams renames the shared parameters into the Messages API
// wire vocabulary.
func (a *AnthropicAdapter) normalizeParams(params GenerationParams) map[string]any {
	wire := make(map[string]any)
	if params.Temperature != nil {
		wire["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		wire["top_p"] = *params.TopP
	}
	if params.TopK != nil {
		wire["top_k"] = *params.TopK
	}
	if params.MaxTokens != nil {
		wire["max_tokens"] = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		wire["stop_sequences"] = params.Stop
	}
	return wire
}

func (a *AnthropicAdapter) FormatError(err error) *CallError {
	return classifyError(err)
}
