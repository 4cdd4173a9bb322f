package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// MockAdapter is a test adapter that records calls and returns canned
// responses or errors.
type MockAdapter struct {
	mu       sync.Mutex
	Calls    []ChatRequest
	Response *ChatResponse
	Chunks   []ResponseChunk
	Err      error
	// FailUntil makes the first N calls fail with Err before
	// succeeding, for retry tests.
	FailUntil int
	Model     ModelDescriptor
}

func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		Model: ModelDescriptor{
			ID:       "mock-model",
			Provider: "mock",
			Pricing:  &Pricing{InputPerMillion: 1.0, OutputPerMillion: 2.0},
		},
		Response: &ChatResponse{
			ID:           "resp-1",
			Content:      "mock response",
			Role:         RoleAssistant,
			FinishReason: "stop",
			Usage:        &Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
			Model:        "mock-model",
		},
	}
}

func (m *MockAdapter) Descriptor() ModelDescriptor { return m.Model }

func (m *MockAdapter) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil && (m.FailUntil == 0 || len(m.Calls) <= m.FailUntil) {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockAdapter) ChatStream(ctx context.Context, req ChatRequest) (ChunkStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil && (m.FailUntil == 0 || len(m.Calls) <= m.FailUntil) {
		return nil, m.Err
	}
	return &sliceStream{chunks: m.Chunks}, nil
}

func (m *MockAdapter) ValidateParams(params GenerationParams) ValidationResult {
	var errs []string
	validateUniversal(params, &errs)
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func (m *MockAdapter) FormatError(err error) *CallError {
	return classifyError(err)
}

func (m *MockAdapter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// sliceStream replays a fixed chunk sequence.
type sliceStream struct {
	chunks  []ResponseChunk
	pos     int
	current ResponseChunk
}

func (s *sliceStream) Next() bool {
	if s.pos >= len(s.chunks) {
		return false
	}
	s.current = s.chunks[s.pos]
	s.pos++
	return true
}

func (s *sliceStream) Current() ResponseChunk { return s.current }
func (s *sliceStream) Err() error             { return nil }
func (s *sliceStream) Close() error           { return nil }

// staticConfig is a ConfigSource with fixed provider settings.
type staticConfig struct {
	cfg ProviderConfig
}

func (c staticConfig) ProviderConfig(providerID string) (ProviderConfig, error) {
	return c.cfg, nil
}

func newTestService(mock *MockAdapter) *Service {
	registry := NewRegistry()
	registry.RegisterProvider(Provider{
		ID:     "mock",
		Name:   "Mock",
		Models: []ModelDescriptor{mock.Model},
		Factory: func(model ModelDescriptor, cfg ProviderConfig) (Adapter, error) {
			return mock, nil
		},
	})
	svc := NewService(registry, staticConfig{cfg: ProviderConfig{APIKey: "test", Retries: 2}})
	svc.SetRetryBase(time.Millisecond)
	return svc
}

// --- Tests ---

func TestCallSuccess(t *testing.T) {
	mock := NewMockAdapter()
	svc := newTestService(mock)

	result := svc.Call(context.Background(), CallRequest{
		Model:    "mock-model",
		Messages: []ChatMessage{UserMessage("hello")},
	})

	if !result.Success {
		t.Fatalf("expected success, got error: %+v", result.Error)
	}
	if result.Response.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", result.Response.Content)
	}
	if result.Usage.TotalTokens != 30 {
		t.Errorf("expected 30 total tokens, got %d", result.Usage.TotalTokens)
	}
	if result.CallID == "" {
		t.Error("expected a call ID")
	}
	if result.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", result.Attempts)
	}
	// 10 input at $1/1M + 20 output at $2/1M.
	wantCost := 10.0/1_000_000*1.0 + 20.0/1_000_000*2.0
	if result.Cost != wantCost {
		t.Errorf("expected cost %v, got %v", wantCost, result.Cost)
	}
}

func TestCallValidationFailureSkipsNetwork(t *testing.T) {
	mock := NewMockAdapter()
	svc := newTestService(mock)

	result := svc.Call(context.Background(), CallRequest{
		Model:    "mock-model",
		Messages: []ChatMessage{UserMessage("hello")},
		Params:   GenerationParams{Temperature: Float64(5.0)},
	})

	if result.Success {
		t.Fatal("expected validation failure")
	}
	if result.Error.Code != CodeValidationFailed {
		t.Errorf("expected code %s, got %s", CodeValidationFailed, result.Error.Code)
	}
	if mock.CallCount() != 0 {
		t.Errorf("expected no adapter calls, got %d", mock.CallCount())
	}
}

func TestCallRetriesUpToCeiling(t *testing.T) {
	mock := NewMockAdapter()
	mock.Err = &CallError{Code: CodeNetworkError, Message: "connection refused", Retryable: true}
	svc := newTestService(mock)

	result := svc.Call(context.Background(), CallRequest{
		Model:    "mock-model",
		Messages: []ChatMessage{UserMessage("hello")},
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	// Retries is 2, so the ceiling is 3 attempts.
	if mock.CallCount() != 3 {
		t.Errorf("expected 3 attempts, got %d", mock.CallCount())
	}
	if result.Attempts != 3 {
		t.Errorf("expected Attempts 3, got %d", result.Attempts)
	}
}

func TestCallRecoversWithinRetryBudget(t *testing.T) {
	mock := NewMockAdapter()
	mock.Err = &CallError{Code: CodeNetworkError, Message: "flaky", Retryable: true}
	mock.FailUntil = 2
	svc := newTestService(mock)

	result := svc.Call(context.Background(), CallRequest{
		Model:    "mock-model",
		Messages: []ChatMessage{UserMessage("hello")},
	})

	if !result.Success {
		t.Fatalf("expected eventual success, got %+v", result.Error)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
}

func TestCallNonRetryableShortCircuits(t *testing.T) {
	mock := NewMockAdapter()
	mock.Err = &CallError{Code: CodeBadResponse, Message: "invalid request", Retryable: false}
	svc := newTestService(mock)

	result := svc.Call(context.Background(), CallRequest{
		Model:    "mock-model",
		Messages: []ChatMessage{UserMessage("hello")},
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	if mock.CallCount() != 1 {
		t.Errorf("expected 1 attempt, got %d", mock.CallCount())
	}
}

func TestCallUnknownModel(t *testing.T) {
	svc := newTestService(NewMockAdapter())

	result := svc.Call(context.Background(), CallRequest{Model: "nope"})
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Error.Code != CodeModelNotFound {
		t.Errorf("expected code %s, got %s", CodeModelNotFound, result.Error.Code)
	}
}

func TestStreamingCallAggregatesChunks(t *testing.T) {
	mock := NewMockAdapter()
	mock.Chunks = []ResponseChunk{
		{ID: "s-1", Content: "Hel", Role: RoleAssistant},
		{ID: "s-1", Content: "lo", Role: RoleAssistant},
		{ID: "s-1", FinishReason: "stop", Usage: &Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7}},
	}
	svc := newTestService(mock)

	result := svc.Call(context.Background(), CallRequest{
		Model:    "mock-model",
		Messages: []ChatMessage{UserMessage("hi")},
		Params:   GenerationParams{Stream: true},
	})

	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Error)
	}
	if result.Response.Content != "Hello" {
		t.Errorf("expected 'Hello', got %q", result.Response.Content)
	}
	if result.Response.FinishReason != "stop" {
		t.Errorf("expected finish reason 'stop', got %q", result.Response.FinishReason)
	}
	if result.Usage == nil || result.Usage.TotalTokens != 7 {
		t.Errorf("expected 7 total tokens, got %+v", result.Usage)
	}
}

func TestStreamingCallInvokesChunkCallback(t *testing.T) {
	mock := NewMockAdapter()
	mock.Chunks = []ResponseChunk{
		{Content: "Hel"},
		{Content: "lo"},
		{FinishReason: "stop"},
	}
	svc := newTestService(mock)

	var seen []ResponseChunk
	result := svc.Call(context.Background(), CallRequest{
		Model:    "mock-model",
		Messages: []ChatMessage{UserMessage("hi")},
		Params:   GenerationParams{Stream: true},
		OnChunk:  func(c ResponseChunk) { seen = append(seen, c) },
	})

	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Error)
	}
	if len(seen) != 3 {
		t.Fatalf("expected callback for every chunk, got %d", len(seen))
	}
	if seen[0].Content != "Hel" || seen[1].Content != "lo" {
		t.Errorf("chunks delivered out of order: %+v", seen)
	}
	if seen[2].FinishReason != "stop" {
		t.Errorf("final chunk missing finish reason: %+v", seen[2])
	}
}

func TestCancelAbortsInFlightCall(t *testing.T) {
	mock := NewMockAdapter()
	svc := newTestService(mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := svc.Call(ctx, CallRequest{
		Model:    "mock-model",
		Messages: []ChatMessage{UserMessage("hello")},
	})

	// A pre-cancelled context still produces one attempt via the mock,
	// which ignores the context; the real abort path is exercised
	// through CancelAll below against a blocking adapter.
	_ = result

	if svc.ActiveCalls() != 0 {
		t.Errorf("expected no active calls, got %d", svc.ActiveCalls())
	}
}

// blockingAdapter blocks in Chat until its context is cancelled.
type blockingAdapter struct {
	MockAdapter
	started chan struct{}
}

func (b *blockingAdapter) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	close(b.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCancelAllAbortsBlockedCalls(t *testing.T) {
	block := &blockingAdapter{started: make(chan struct{})}
	block.Model = ModelDescriptor{ID: "block-model", Provider: "mock"}

	registry := NewRegistry()
	registry.RegisterProvider(Provider{
		ID:     "mock",
		Models: []ModelDescriptor{block.Model},
		Factory: func(model ModelDescriptor, cfg ProviderConfig) (Adapter, error) {
			return block, nil
		},
	})
	svc := NewService(registry, staticConfig{cfg: ProviderConfig{APIKey: "test"}})

	done := make(chan *CallResult, 1)
	go func() {
		done <- svc.Call(context.Background(), CallRequest{
			Model:    "block-model",
			Messages: []ChatMessage{UserMessage("hello")},
		})
	}()

	<-block.started
	if n := svc.CancelAll(); n != 1 {
		t.Errorf("expected 1 cancelled call, got %d", n)
	}

	select {
	case result := <-done:
		if result.Success {
			t.Fatal("expected aborted call to fail")
		}
		if result.Error.Code != CodeAborted {
			t.Errorf("expected code %s, got %s", CodeAborted, result.Error.Code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled call never returned")
	}
}

func TestBatchCallPreservesOrder(t *testing.T) {
	mock := NewMockAdapter()
	svc := newTestService(mock)

	reqs := make([]CallRequest, 7)
	for i := range reqs {
		reqs[i] = CallRequest{Model: "mock-model", Messages: []ChatMessage{UserMessage("q")}}
	}

	results := svc.BatchCall(context.Background(), reqs)
	if len(results) != 7 {
		t.Fatalf("expected 7 results, got %d", len(results))
	}
	for i, r := range results {
		if r == nil || !r.Success {
			t.Errorf("result %d missing or failed", i)
		}
	}
	if mock.CallCount() != 7 {
		t.Errorf("expected 7 calls, got %d", mock.CallCount())
	}
}

func TestCompareModelsMatchesInputOrder(t *testing.T) {
	mock := NewMockAdapter()
	svc := newTestService(mock)

	results := svc.CompareModels(context.Background(), []string{"mock-model", "missing"}, []ChatMessage{UserMessage("q")}, GenerationParams{})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Success {
		t.Errorf("expected first result to succeed: %+v", results[0].Error)
	}
	if results[1].Success || results[1].Error.Code != CodeModelNotFound {
		t.Errorf("expected second result to fail with model not found, got %+v", results[1])
	}
}

func TestClassifyErrorPassesThroughCallError(t *testing.T) {
	orig := &CallError{Code: CodeTimeout, Message: "deadline", Retryable: true}
	got := classifyError(orig)
	if got != orig {
		t.Error("expected CallError to pass through unchanged")
	}
}

func TestClassifyContextErrors(t *testing.T) {
	if got := classifyError(context.Canceled); got.Code != CodeAborted || got.Retryable {
		t.Errorf("cancelled context should be non-retryable abort, got %+v", got)
	}
	if got := classifyError(context.DeadlineExceeded); got.Code != CodeTimeout || !got.Retryable {
		t.Errorf("deadline should be retryable timeout, got %+v", got)
	}
	if got := classifyError(errors.New("weird")); got.Code != CodeUnknown || got.Retryable {
		t.Errorf("unknown errors should be non-retryable, got %+v", got)
	}
}
