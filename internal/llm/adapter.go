package llm

import (
	"context"
)

// Adapter translates the shared chat request/response shape to and from
// one provider's wire format. Implementations issue outbound network
// calls but never touch shared state outside themselves.
type Adapter interface {
	// Descriptor returns the static metadata of the model this adapter
	// is bound to.
	Descriptor() ModelDescriptor

	// Chat executes a single-shot completion. It blocks until the
	// provider answers or the context is done.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ChatStream starts a streaming completion. The returned stream is
	// forward-only and must be consumed exactly once.
	ChatStream(ctx context.Context, req ChatRequest) (ChunkStream, error)

	// ValidateParams checks universal and provider-specific parameter
	// ranges and, on success, returns the parameters reshaped into the
	// provider's wire vocabulary.
	ValidateParams(params GenerationParams) ValidationResult

	// FormatError classifies an error from Chat or ChatStream into the
	// uniform CallError shape.
	FormatError(err error) *CallError
}

// ChunkStream is a forward-only sequence of response chunks. The
// consumer drives pacing: each Next suspends until a chunk is
// available. Once iterated the stream cannot be restarted.
type ChunkStream interface {
	// Next advances to the next chunk, returning false at end of
	// stream or on error.
	Next() bool

	// Current returns the chunk Next advanced to.
	Current() ResponseChunk

	// Err returns the error that terminated the stream, if any.
	Err() error

	// Close releases the underlying connection. Safe to call more
	// than once.
	Close() error
}

// validateUniversal checks the ranges every provider agrees on.
// Provider-specific checks are layered on by each adapter.
func validateUniversal(params GenerationParams, errs *[]string) {
	if params.Temperature != nil && (*params.Temperature < 0 || *params.Temperature > 2) {
		*errs = append(*errs, "temperature must be between 0 and 2")
	}
	if params.TopP != nil && (*params.TopP < 0 || *params.TopP > 1) {
		*errs = append(*errs, "topP must be between 0 and 1")
	}
	if params.MaxTokens != nil && *params.MaxTokens < 0 {
		*errs = append(*errs, "maxTokens must not be negative")
	}
}

// mergeParams overlays caller params on the model's defaults. Caller
// values win; defaults only fill fields the caller left unset.
func mergeParams(defaults, params GenerationParams) GenerationParams {
	merged := params
	if merged.Temperature == nil {
		merged.Temperature = defaults.Temperature
	}
	if merged.TopP == nil {
		merged.TopP = defaults.TopP
	}
	if merged.TopK == nil {
		merged.TopK = defaults.TopK
	}
	if merged.MaxTokens == nil {
		merged.MaxTokens = defaults.MaxTokens
	}
	if merged.Stop == nil {
		merged.Stop = defaults.Stop
	}
	if merged.PresencePenalty == nil {
		merged.PresencePenalty = defaults.PresencePenalty
	}
	if merged.FrequencyPenalty == nil {
		merged.FrequencyPenalty = defaults.FrequencyPenalty
	}
	return merged
}

// validateRequest merges defaults, runs the adapter's validation and
// returns the merged params, failing before any network is touched.
func validateRequest(a Adapter, req ChatRequest) (GenerationParams, error) {
	params := mergeParams(a.Descriptor().DefaultParams, req.Params)
	result := a.ValidateParams(params)
	if !result.Valid {
		return params, validationError(result.Errors)
	}
	return params, nil
}
