package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Error codes used across adapters and the service.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeModelNotFound    = "MODEL_NOT_FOUND"
	CodeNoFactory        = "NO_FACTORY"
	CodeNetworkError     = "NETWORK_ERROR"
	CodeTimeout          = "TIMEOUT"
	CodeAborted          = "ABORTED"
	CodeBadResponse      = "BAD_RESPONSE"
	CodeUnknown          = "UNKNOWN_ERROR"
)

// Registry errors.
var (
	ErrModelNotFound = errors.New("model not found")
	ErrNoFactory     = errors.New("no adapter factory registered for provider")
)

// CallError is the uniform error shape every adapter produces.
// Retryable tells the caller whether another attempt can succeed.
type CallError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// httpCode formats an HTTP status into an error code.
func httpCode(status int) string {
	return fmt.Sprintf("HTTP_%d", status)
}

// retryableStatus reports whether an HTTP status is worth retrying:
// server errors and rate limits are, other client errors are not.
func retryableStatus(status int) bool {
	return status >= 500 || status == 429
}

// classifyError converts an arbitrary transport error into a CallError.
// Network unreachability and timeouts are retryable; cancellation is
// its own category so callers can tell a user stop from a failure.
func classifyError(err error) *CallError {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce
	}

	if errors.Is(err, context.Canceled) {
		return &CallError{Code: CodeAborted, Message: "call aborted", Retryable: false}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &CallError{Code: CodeTimeout, Message: "call timed out", Details: err.Error(), Retryable: true}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		code := CodeNetworkError
		if netErr.Timeout() {
			code = CodeTimeout
		}
		return &CallError{Code: code, Message: "network error", Details: err.Error(), Retryable: true}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &CallError{Code: CodeNetworkError, Message: "request failed", Details: err.Error(), Retryable: true}
	}

	return &CallError{Code: CodeUnknown, Message: err.Error(), Retryable: false}
}

// statusError builds the CallError for a non-2xx HTTP response.
func statusError(status int, body string) *CallError {
	return &CallError{
		Code:      httpCode(status),
		Message:   fmt.Sprintf("provider returned status %d", status),
		Details:   body,
		Retryable: retryableStatus(status),
	}
}

// validationError builds the CallError for failed parameter validation.
func validationError(errs []string) *CallError {
	msg := "parameter validation failed"
	if len(errs) > 0 {
		msg = errs[0]
	}
	return &CallError{Code: CodeValidationFailed, Message: msg, Retryable: false}
}
