package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const googleAPIBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GeminiAdapter implements Adapter using the Google Gemini API via
// direct HTTP.
type GeminiAdapter struct {
	model   ModelDescriptor
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewGeminiAdapter creates an adapter for a Google Gemini model.
func NewGeminiAdapter(model ModelDescriptor, cfg ProviderConfig) (Adapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("google: API key not configured")
	}
	baseURL := googleAPIBaseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	return &GeminiAdapter{
		model:   model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (g *GeminiAdapter) Descriptor() ModelDescriptor { return g.model }

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata"`
	Error         *geminiError         `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      *geminiContent `json:"content"`
	FinishReason string         `json:"finishReason"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (g *GeminiAdapter) buildRequest(req ChatRequest) geminiRequest {
	params := req.Params

	// Gemini takes system text as a top-level instruction and uses
	// "model" for the assistant role.
	var systemParts []geminiPart
	if params.SystemPrompt != "" {
		systemParts = append(systemParts, geminiPart{Text: params.SystemPrompt})
	}
	// Gemini rejects consecutive turns with the same role, so adjacent
	// same-role messages collapse into one multi-part turn.
	var contents []geminiContent
	appendTurn := func(role, text string) {
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, geminiPart{Text: text})
			return
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: text}},
		})
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, geminiPart{Text: msg.Content})
		case RoleUser:
			appendTurn("user", msg.Content)
		case RoleAssistant:
			appendTurn("model", msg.Content)
		}
	}
	if len(contents) == 0 {
		contents = append(contents, geminiContent{
			Role:  "user",
			Parts: []geminiPart{{Text: ""}},
		})
	}

	apiReq := geminiRequest{
		Contents: contents,
		GenerationConfig: &geminiGenerationConfig{
			Temperature:   params.Temperature,
			TopP:          params.TopP,
			TopK:          params.TopK,
			StopSequences: params.Stop,
		},
	}
	if len(systemParts) > 0 {
		apiReq.SystemInstruction = &geminiContent{Parts: systemParts}
	}
	if params.MaxTokens != nil && *params.MaxTokens > 0 {
		apiReq.GenerationConfig.MaxOutputTokens = *params.MaxTokens
	}
	return apiReq
}

func (g *GeminiAdapter) send(ctx context.Context, apiReq geminiRequest, endpoint string) (*http.Response, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	url := fmt.Sprintf("%s/%s:%s%skey=%s", g.baseURL, g.model.ID, endpoint, sep, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return g.client.Do(httpReq)
}

func (g *GeminiAdapter) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	httpResp, err := g.send(ctx, g.buildRequest(req), "generateContent")
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

	var apiResp geminiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, &CallError{Code: CodeBadResponse, Message: fmt.Sprintf("failed to unmarshal gemini response: %v", err)}
	}
	if apiResp.Error != nil {
		return nil, &CallError{Code: CodeBadResponse, Message: fmt.Sprintf("gemini API error (%s): %s", apiResp.Error.Status, apiResp.Error.Message)}
	}

	var content string
	var finishReason string
	if len(apiResp.Candidates) > 0 {
		finishReason = apiResp.Candidates[0].FinishReason
		if apiResp.Candidates[0].Content != nil {
			for _, part := range apiResp.Candidates[0].Content.Parts {
				content += part.Text
			}
		}
	}

	resp := &ChatResponse{
		Content:      content,
		Role:         RoleAssistant,
		FinishReason: finishReason,
		Model:        g.model.ID,
	}
	if apiResp.UsageMetadata != nil {
		resp.Usage = &Usage{
			PromptTokens:     apiResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: apiResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      apiResp.UsageMetadata.TotalTokenCount,
		}
	}
	return resp, nil
}

func (g *GeminiAdapter) ChatStream(ctx context.Context, req ChatRequest) (ChunkStream, error) {
	httpResp, err := g.send(ctx, g.buildRequest(req), "streamGenerateContent?alt=sse")
	if err != nil {
		return nil, classifyError(err)
	}

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		return nil, statusError(httpResp.StatusCode, string(respBody))
	}

	return newLineStream(httpResp.Body, func(frame string) (ResponseChunk, bool, error) {
		data, ok := sseData(frame)
		if !ok {
			return ResponseChunk{}, false, nil
		}

		var event geminiResponse
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return ResponseChunk{}, false, nil
		}
		if event.Error != nil {
			return ResponseChunk{}, false, &CallError{Code: CodeBadResponse, Message: fmt.Sprintf("gemini stream error (%s): %s", event.Error.Status, event.Error.Message)}
		}

		chunk := ResponseChunk{Role: RoleAssistant}
		if len(event.Candidates) > 0 {
			chunk.FinishReason = event.Candidates[0].FinishReason
			if event.Candidates[0].Content != nil {
				for _, part := range event.Candidates[0].Content.Parts {
					chunk.Content += part.Text
				}
			}
		}
		if event.UsageMetadata != nil {
			chunk.Usage = &Usage{
				PromptTokens:     event.UsageMetadata.PromptTokenCount,
				CompletionTokens: event.UsageMetadata.CandidatesTokenCount,
				TotalTokens:      event.UsageMetadata.TotalTokenCount,
			}
		}
		if chunk.Content == "" && chunk.FinishReason == "" && chunk.Usage == nil {
			return ResponseChunk{}, false, nil
		}
		return chunk, true, nil
	}), nil
}

func (g *GeminiAdapter) ValidateParams(params GenerationParams) ValidationResult {
	var errs []string
	var warns []string
	validateUniversal(params, &errs)
	if params.TopK != nil && (*params.TopK < 1 || *params.TopK > 40) {
		errs = append(errs, "top_k must be between 1 and 40")
	}
	if params.PresencePenalty != nil || params.FrequencyPenalty != nil {
		warns = append(warns, "gemini models ignore presence_penalty and frequency_penalty")
	}
	result := ValidationResult{Valid: len(errs) == 0, Errors: errs, Warnings: warns}
	if result.Valid {
		result.Normalized = g.normalizeParams(params)
	}
	return result
}

// normalizeParams renames the shared parameters into the
// generationConfig wire vocabulary.
func (g *GeminiAdapter) normalizeParams(params GenerationParams) map[string]any {
	wire := make(map[string]any)
	if params.Temperature != nil {
		wire["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		wire["topP"] = *params.TopP
	}
	if params.TopK != nil {
		wire["topK"] = *params.TopK
	}
	if params.MaxTokens != nil {
		wire["maxOutputTokens"] = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		wire["stopSequences"] = params.Stop
	}
	return wire
}

func (g *GeminiAdapter) FormatError(err error) *CallError {
	return classifyError(err)
}
