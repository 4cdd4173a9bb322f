package llm

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConfigSource supplies provider configuration at call time, so
// credential changes take effect without rebuilding the service.
type ConfigSource interface {
	ProviderConfig(providerID string) (ProviderConfig, error)
}

// CallRequest describes one model invocation through the service.
type CallRequest struct {
	Model    string
	Messages []ChatMessage
	Params   GenerationParams
	// Retries overrides the provider's configured retry count when
	// non-nil. The total attempt ceiling is retries+1.
	Retries *int
	// OnChunk is invoked for every chunk of a streaming call, in
	// arrival order, before the chunk is folded into the aggregate.
	OnChunk func(ResponseChunk)
}

// CallResult is the outcome of a service call. Call never returns a Go
// error; failures are carried in Error with Success false, so callers
// in long-running loops handle both outcomes through one shape.
type CallResult struct {
	CallID   string        `json:"callId"`
	Model    string        `json:"model"`
	Success  bool          `json:"success"`
	Response *ChatResponse `json:"response,omitempty"`
	Error    *CallError    `json:"error,omitempty"`
	Usage    *Usage        `json:"usage,omitempty"`
	Cost     float64       `json:"cost"`
	Duration time.Duration `json:"duration"`
	Attempts int           `json:"attempts"`
}

// Service executes model calls with retry, streaming aggregation and
// cancellation on top of the adapter registry.
type Service struct {
	registry  *Registry
	config    ConfigSource
	retryBase time.Duration

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewService creates a model service over the given registry and
// configuration source.
func NewService(registry *Registry, config ConfigSource) *Service {
	return &Service{
		registry:  registry,
		config:    config,
		retryBase: time.Second,
		active:    make(map[string]context.CancelFunc),
	}
}

// SetRetryBase overrides the base backoff delay. Used by tests to keep
// retry paths fast.
func (s *Service) SetRetryBase(d time.Duration) { s.retryBase = d }

// Registry exposes the underlying registry for catalog lookups.
func (s *Service) Registry() *Registry { return s.registry }

func (s *Service) register(callID string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.active[callID] = cancel
	s.mu.Unlock()
}

func (s *Service) unregister(callID string) {
	s.mu.Lock()
	delete(s.active, callID)
	s.mu.Unlock()
}

// Cancel aborts an in-flight call by ID. Returns false if no such call
// is active.
func (s *Service) Cancel(callID string) bool {
	s.mu.Lock()
	cancel, ok := s.active[callID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// CancelAll aborts every in-flight call and returns how many were
// cancelled.
func (s *Service) CancelAll() int {
	s.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.active))
	for _, cancel := range s.active {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	return len(cancels)
}

// ActiveCalls returns the number of calls currently in flight.
func (s *Service) ActiveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Call invokes a model and returns the outcome. The returned result ID
// can be passed to Cancel while the call is in flight.
func (s *Service) Call(ctx context.Context, req CallRequest) *CallResult {
	callID := uuid.NewString()
	result := &CallResult{CallID: callID, Model: req.Model}
	start := time.Now()

	model, err := s.registry.Model(req.Model)
	if err != nil {
		result.Error = &CallError{Code: CodeModelNotFound, Message: err.Error()}
		result.Duration = time.Since(start)
		return result
	}

	cfg, err := s.config.ProviderConfig(model.Provider)
	if err != nil {
		result.Error = classifyError(err)
		result.Duration = time.Since(start)
		return result
	}

	adapter, err := s.registry.CreateAdapter(req.Model, cfg)
	if err != nil {
		result.Error = classifyError(err)
		result.Duration = time.Since(start)
		return result
	}

	chatReq := ChatRequest{Messages: req.Messages, Params: req.Params}
	merged, err := validateRequest(adapter, chatReq)
	if err != nil {
		// Validation failures never reach the network and never retry.
		result.Error = classifyError(err)
		result.Duration = time.Since(start)
		return result
	}
	chatReq.Params = merged

	retries := cfg.Retries
	if req.Retries != nil {
		retries = *req.Retries
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.register(callID, cancel)
	defer s.unregister(callID)

	resp, callErr, attempts := s.withRetry(callCtx, adapter, chatReq, retries, req.OnChunk)
	result.Attempts = attempts
	result.Duration = time.Since(start)

	if callErr != nil {
		log.Printf("llm: call %s to %s failed after %d attempt(s): %s", callID, req.Model, attempts, callErr.Message)
		result.Error = callErr
		return result
	}

	result.Success = true
	result.Response = resp
	result.Usage = resp.Usage
	if result.Usage == nil {
		result.Usage = EstimateUsage(flattenMessages(req.Messages), resp.Content)
	}
	result.Cost = EstimateCost(model, result.Usage)
	return result
}

// withRetry runs the call with exponential backoff. Attempt i waits
// 2^i * retryBase before retrying; non-retryable errors short-circuit.
func (s *Service) withRetry(ctx context.Context, adapter Adapter, req ChatRequest, retries int, onChunk func(ResponseChunk)) (*ChatResponse, *CallError, int) {
	if retries < 0 {
		retries = 0
	}

	var lastErr *CallError
	attempts := 0
	for attempt := 0; attempt <= retries; attempt++ {
		attempts++
		resp, err := s.dispatch(ctx, adapter, req, onChunk)
		if err == nil {
			return resp, nil, attempts
		}

		lastErr = adapter.FormatError(err)
		if !lastErr.Retryable || attempt == retries {
			break
		}

		delay := s.retryBase * (1 << attempt)
		select {
		case <-ctx.Done():
			return nil, classifyError(ctx.Err()), attempts
		case <-time.After(delay):
		}
	}
	return nil, lastErr, attempts
}

// dispatch routes between the synchronous and streaming paths based on
// the request parameters.
func (s *Service) dispatch(ctx context.Context, adapter Adapter, req ChatRequest, onChunk func(ResponseChunk)) (*ChatResponse, error) {
	if !req.Params.Stream {
		return adapter.Chat(ctx, req)
	}
	return s.consumeStream(ctx, adapter, req, onChunk)
}

// consumeStream drains a streaming response into one aggregated
// ChatResponse, checking for cancellation between chunks.
func (s *Service) consumeStream(ctx context.Context, adapter Adapter, req ChatRequest, onChunk func(ResponseChunk)) (*ChatResponse, error) {
	stream, err := adapter.ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var agg aggregator
	for stream.Next() {
		if ctx.Err() != nil {
			return nil, classifyError(ctx.Err())
		}
		chunk := stream.Current()
		if onChunk != nil {
			onChunk(chunk)
		}
		agg.add(chunk)
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, classifyError(ctx.Err())
	}

	resp := agg.response()
	resp.Model = adapter.Descriptor().ID
	return resp, nil
}

// TestModel performs a quick connectivity check against a model with a
// short deadline and a single retry.
func (s *Service) TestModel(ctx context.Context, modelID string) *CallResult {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	one := 1
	return s.Call(ctx, CallRequest{
		Model: modelID,
		Messages: []ChatMessage{
			UserMessage("Reply with the single word OK."),
		},
		Params:  GenerationParams{MaxTokens: Int(16), Temperature: Float64(0)},
		Retries: &one,
	})
}

// CompareModels runs the same conversation against several models in
// parallel. Results are ordered to match the input model list.
func (s *Service) CompareModels(ctx context.Context, modelIDs []string, messages []ChatMessage, params GenerationParams) []*CallResult {
	results := make([]*CallResult, len(modelIDs))
	var wg sync.WaitGroup
	for i, id := range modelIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i] = s.Call(ctx, CallRequest{Model: id, Messages: messages, Params: params})
		}(i, id)
	}
	wg.Wait()
	return results
}

// batchConcurrency caps how many batch calls run at once.
const batchConcurrency = 3

// BatchCall executes a set of calls with bounded concurrency. Results
// are ordered to match the input requests.
func (s *Service) BatchCall(ctx context.Context, reqs []CallRequest) []*CallResult {
	results := make([]*CallResult, len(reqs))
	sem := make(chan struct{}, batchConcurrency)
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req CallRequest) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = s.Call(ctx, req)
		}(i, req)
	}
	wg.Wait()
	return results
}

func flattenMessages(messages []ChatMessage) string {
	var out string
	for _, m := range messages {
		out += m.Content + "\n"
	}
	return out
}
