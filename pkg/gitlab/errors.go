package gitlab

import (
	"errors"
	"fmt"
)

var (
	// ErrCircuitOpen is returned without any network I/O while the
	// breaker is open.
	ErrCircuitOpen = errors.New("gitlab: circuit open")
	// ErrRateLimitTimeout is returned when a call gave up waiting for a
	// rate-limit token.
	ErrRateLimitTimeout = errors.New("gitlab: rate limit wait timeout")
)

// APIError wraps a failed GitLab call with the HTTP status, when one was
// received. StatusCode 0 means the request never produced a response
// (network failure, open circuit, limiter timeout).
type APIError struct {
	StatusCode int
	Op         string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gitlab: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gitlab: %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth another attempt:
// transport-level failures, 429 and 5xx are; other 4xx are not.
func (e *APIError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}

func wrapAPIError(op string, status int, err error) error {
	if err == nil {
		return nil
	}
	return &APIError{StatusCode: status, Op: op, Err: err}
}
