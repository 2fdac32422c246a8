package gitlab

import (
	"errors"
	"testing"
)

func TestAPIErrorRetryable(t *testing.T) {
	cases := []struct {
		status int
		want   bool
	}{
		{0, true},
		{429, true},
		{500, true},
		{503, true},
		{400, false},
		{401, false},
		{404, false},
	}
	for _, tc := range cases {
		err := &APIError{StatusCode: tc.status, Op: "get project", Err: errors.New("boom")}
		if got := err.Retryable(); got != tc.want {
			t.Fatalf("Retryable(status %d) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestWrapAPIError(t *testing.T) {
	if wrapAPIError("get project", 200, nil) != nil {
		t.Fatalf("nil error should stay nil")
	}

	cause := errors.New("boom")
	err := wrapAPIError("get pipeline", 404, cause)
	if !errors.Is(err, cause) {
		t.Fatalf("wrapped error lost its cause")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != 404 || apiErr.Op != "get pipeline" {
		t.Fatalf("APIError = %+v", apiErr)
	}
}

func TestWrapAPIErrorPreservesSentinels(t *testing.T) {
	err := wrapAPIError("get project", 0, ErrCircuitOpen)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("sentinel lost through wrapping")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.Retryable() {
		t.Fatalf("status 0 failures should be retryable")
	}
}
