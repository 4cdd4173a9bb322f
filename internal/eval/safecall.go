package eval

import (
	"context"
	"fmt"
	"time"

	"github.com/ziadkadry99/promptlab/internal/llm"
)

// safeCall runs a model call function, absorbing panics and retrying
// failed results a fixed number of times with a constant delay. The
// returned result is never nil, so run loops handle every outcome
// through the same shape. Cancellation between attempts yields an
// aborted result immediately.
func safeCall(ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context) *llm.CallResult) *llm.CallResult {
	if attempts < 1 {
		attempts = 1
	}

	var last *llm.CallResult
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return abortedResult()
			case <-time.After(delay):
			}
		}

		last = invoke(ctx, fn)
		if last.Success {
			return last
		}
		// Aborts and non-retryable failures are final; only transient
		// errors earn the extra attempt.
		if last.Error != nil && (last.Error.Code == llm.CodeAborted || !last.Error.Retryable) {
			return last
		}
	}
	return last
}

// invoke calls fn with panic recovery. A panicking adapter becomes a
// failed result instead of taking the whole run down.
func invoke(ctx context.Context, fn func(ctx context.Context) *llm.CallResult) (result *llm.CallResult) {
	defer func() {
		if r := recover(); r != nil {
			result = &llm.CallResult{
				Error: &llm.CallError{
					Code:    llm.CodeUnknown,
					Message: fmt.Sprintf("model call panicked: %v", r),
				},
			}
		}
	}()

	result = fn(ctx)
	if result == nil {
		result = &llm.CallResult{
			Error: &llm.CallError{Code: llm.CodeUnknown, Message: "model call returned no result"},
		}
	}
	return result
}

func abortedResult() *llm.CallResult {
	return &llm.CallResult{
		Error: &llm.CallError{Code: llm.CodeAborted, Message: "run cancelled"},
	}
}
