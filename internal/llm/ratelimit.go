package llm

import (
	"context"
	"sync"
	"time"
)

// rateLimitedAdapter wraps an Adapter with a token bucket rate limiter.
type rateLimitedAdapter struct {
	adapter  Adapter
	rpm      int
	mu       sync.Mutex
	tokens   int
	lastFill time.Time
}

// RateLimited wraps the given adapter with a rate limiter that allows
// at most rpm requests per minute. Validation and error formatting
// pass through without consuming tokens.
func RateLimited(adapter Adapter, rpm int) Adapter {
	return &rateLimitedAdapter{
		adapter:  adapter,
		rpm:      rpm,
		tokens:   rpm,
		lastFill: time.Now(),
	}
}

func (r *rateLimitedAdapter) Descriptor() ModelDescriptor {
	return r.adapter.Descriptor()
}

func (r *rateLimitedAdapter) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := r.wait(ctx); err != nil {
		return nil, classifyError(err)
	}
	return r.adapter.Chat(ctx, req)
}

func (r *rateLimitedAdapter) ChatStream(ctx context.Context, req ChatRequest) (ChunkStream, error) {
	if err := r.wait(ctx); err != nil {
		return nil, classifyError(err)
	}
	return r.adapter.ChatStream(ctx, req)
}

func (r *rateLimitedAdapter) ValidateParams(params GenerationParams) ValidationResult {
	return r.adapter.ValidateParams(params)
}

func (r *rateLimitedAdapter) FormatError(err error) *CallError {
	return r.adapter.FormatError(err)
}

func (r *rateLimitedAdapter) wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(r.lastFill)

		// Refill tokens based on elapsed time.
		refill := int(elapsed.Seconds() * float64(r.rpm) / 60.0)
		if refill > 0 {
			r.tokens += refill
			if r.tokens > r.rpm {
				r.tokens = r.rpm
			}
			r.lastFill = now
		}

		if r.tokens > 0 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
