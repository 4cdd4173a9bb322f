package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIAdapter implements Adapter using the OpenAI Chat Completions
// API through the official-style SDK.
type OpenAIAdapter struct {
	model  ModelDescriptor
	client *openai.Client
}

// NewOpenAIAdapter creates an adapter for an OpenAI model.
func NewOpenAIAdapter(model ModelDescriptor, cfg ProviderConfig) (Adapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key not configured")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIAdapter{
		model:  model,
		client: openai.NewClientWithConfig(clientCfg),
	}, nil
}

func (o *OpenAIAdapter) Descriptor() ModelDescriptor { return o.model }

func (o *OpenAIAdapter) buildRequest(req ChatRequest) openai.ChatCompletionRequest {
	params := req.Params

	var messages []openai.ChatCompletionMessage
	if params.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: params.SystemPrompt,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	apiReq := openai.ChatCompletionRequest{
		Model:    o.model.ID,
		Messages: messages,
		Stop:     params.Stop,
	}
	if params.Temperature != nil {
		apiReq.Temperature = float32(*params.Temperature)
	}
	if params.TopP != nil {
		apiReq.TopP = float32(*params.TopP)
	}
	if params.MaxTokens != nil {
		apiReq.MaxTokens = *params.MaxTokens
	}
	if params.PresencePenalty != nil {
		apiReq.PresencePenalty = float32(*params.PresencePenalty)
	}
	if params.FrequencyPenalty != nil {
		apiReq.FrequencyPenalty = float32(*params.FrequencyPenalty)
	}
	return apiReq
}

func (o *OpenAIAdapter) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := o.client.CreateChatCompletion(ctx, o.buildRequest(req))
	if err != nil {
		return nil, o.FormatError(err)
	}

	var content string
	var finishReason string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		finishReason = string(resp.Choices[0].FinishReason)
	}

	return &ChatResponse{
		ID:           resp.ID,
		Content:      content,
		Role:         RoleAssistant,
		FinishReason: finishReason,
		Usage: &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Model: resp.Model,
	}, nil
}

// openAIStream adapts the SDK stream to ChunkStream.
type openAIStream struct {
	stream  *openai.ChatCompletionStream
	current ResponseChunk
	err     error
	done    bool
}

func (s *openAIStream) Next() bool {
	if s.done {
		return false
	}
	resp, err := s.stream.Recv()
	if err != nil {
		s.done = true
		if !errors.Is(err, io.EOF) {
			s.err = classifyError(err)
		}
		return false
	}

	chunk := ResponseChunk{ID: resp.ID, Role: RoleAssistant}
	if len(resp.Choices) > 0 {
		chunk.Content = resp.Choices[0].Delta.Content
		chunk.FinishReason = string(resp.Choices[0].FinishReason)
	}
	if resp.Usage != nil {
		chunk.Usage = &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	s.current = chunk
	return true
}

func (s *openAIStream) Current() ResponseChunk { return s.current }

func (s *openAIStream) Err() error { return s.err }

func (s *openAIStream) Close() error {
	s.done = true
	return s.stream.Close()
}

func (o *OpenAIAdapter) ChatStream(ctx context.Context, req ChatRequest) (ChunkStream, error) {
	apiReq := o.buildRequest(req)
	apiReq.Stream = true
	apiReq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := o.client.CreateChatCompletionStream(ctx, apiReq)
	if err != nil {
		return nil, o.FormatError(err)
	}
	return &openAIStream{stream: stream}, nil
}

func (o *OpenAIAdapter) ValidateParams(params GenerationParams) ValidationResult {
	var errs []string
	var warns []string
	validateUniversal(params, &errs)
	if params.PresencePenalty != nil && (*params.PresencePenalty < -2 || *params.PresencePenalty > 2) {
		errs = append(errs, "presence_penalty must be between -2 and 2")
	}
	if params.FrequencyPenalty != nil && (*params.FrequencyPenalty < -2 || *params.FrequencyPenalty > 2) {
		errs = append(errs, "frequency_penalty must be between -2 and 2")
	}
	if params.TopK != nil {
		warns = append(warns, "openai models ignore top_k")
	}
	result := ValidationResult{Valid: len(errs) == 0, Errors: errs, Warnings: warns}
	if result.Valid {
		result.Normalized = o.normalizeParams(params)
	}
	return result
}

// normalizeParams renames the shared parameters into the Chat
// Completions wire vocabulary.
func (o *OpenAIAdapter) normalizeParams(params GenerationParams) map[string]any {
	wire := make(map[string]any)
	if params.Temperature != nil {
		wire["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		wire["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		wire["max_tokens"] = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		wire["stop"] = params.Stop
	}
	if params.PresencePenalty != nil {
		wire["presence_penalty"] = *params.PresencePenalty
	}
	if params.FrequencyPenalty != nil {
		wire["frequency_penalty"] = *params.FrequencyPenalty
	}
	return wire
}

// FormatError maps SDK errors onto call error codes, preserving the
// HTTP status classification for retry decisions.
func (o *OpenAIAdapter) FormatError(err error) *CallError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &CallError{
			Code:      httpCode(apiErr.HTTPStatusCode),
			Message:   apiErr.Message,
			Details:   fmt.Sprintf("status %d", apiErr.HTTPStatusCode),
			Retryable: retryableStatus(apiErr.HTTPStatusCode),
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &CallError{
			Code:      httpCode(reqErr.HTTPStatusCode),
			Message:   reqErr.Error(),
			Retryable: retryableStatus(reqErr.HTTPStatusCode),
		}
	}
	return classifyError(err)
}
