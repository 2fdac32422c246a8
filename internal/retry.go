package internal

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const maxBackoffDelay = 60 * time.Second

// Terminal wraps a domain error so the retry machinery treats it as
// non-retryable (e.g. an unsupported project).
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return terminalError{err: err}
}

type terminalError struct{ err error }

func (t terminalError) Error() string { return t.err.Error() }
func (t terminalError) Unwrap() error { return t.err }

// IsTerminal reports whether err was marked with Terminal.
func IsTerminal(err error) bool {
	var t terminalError
	return errors.As(err, &t)
}

// Retryable classifies an error for the retry budget. Errors carrying
// their own classification (the API client's) are trusted; terminal
// markers and context cancellation are final; anything unclassified is
// treated conservatively as transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if IsTerminal(err) {
		return false
	}
	var classified interface{ Retryable() bool }
	if errors.As(err, &classified) {
		return classified.Retryable()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Delay returns the backoff before the next attempt, after `failures`
// completed attempts: base * 2^(failures-1), capped, plus jitter so
// concurrent workers do not retry in lockstep.
func Delay(failures int, base time.Duration) time.Duration {
	if failures < 1 {
		failures = 1
	}
	if base <= 0 {
		base = time.Second
	}
	delay := base << (failures - 1)
	if delay > maxBackoffDelay || delay <= 0 {
		delay = maxBackoffDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	return delay + jitter
}

// Attempt runs fn up to max times with exponential backoff between
// attempts. Only retryable failures consume the budget; a terminal error
// returns immediately. The last error is returned once the budget is
// exhausted.
func Attempt(ctx context.Context, max int, base time.Duration, fn func(context.Context) error) error {
	if max < 1 {
		max = 1
	}
	var lastErr error
	for attempt := 1; attempt <= max; attempt++ {
		if attempt > 1 {
			if err := Sleep(ctx, Delay(attempt-1, base)); err != nil {
				return err
			}
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// Sleep blocks for d or until ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
