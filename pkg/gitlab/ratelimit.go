package gitlab

import (
	"context"
	"sync"
	"time"
)

// tokenBucket meters outbound calls to the remote host. Tokens refill
// continuously at rps up to burst; Wait blocks cooperatively until a token
// is available, the context ends, or the configured wait timeout elapses.
type tokenBucket struct {
	mu          sync.Mutex
	tokens      float64
	burst       float64
	rps         float64
	last        time.Time
	waitTimeout time.Duration
	now         func() time.Time
}

func newTokenBucket(rps, burst float64, waitTimeout time.Duration) *tokenBucket {
	if burst < 1 {
		burst = rps
		if burst < 1 {
			burst = 1
		}
	}
	b := &tokenBucket{
		tokens:      burst,
		burst:       burst,
		rps:         rps,
		waitTimeout: waitTimeout,
		now:         time.Now,
	}
	b.last = b.now()
	return b
}

// take refills from elapsed wall-clock time and consumes one token when
// available. It returns how long until the next token otherwise.
func (b *tokenBucket) take() (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.rps
		if b.tokens > b.burst {
			b.tokens = b.burst
		}
		b.last = now
	}

	if b.tokens >= 1 {
		b.tokens -= 1
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) / b.rps * float64(time.Second))
	if wait <= 0 {
		wait = time.Millisecond
	}
	return false, wait
}

// Wait blocks until a token is taken. It fails with ErrRateLimitTimeout
// once the wait budget is spent, and with the context error on
// cancellation; it never busy-spins.
func (b *tokenBucket) Wait(ctx context.Context) error {
	deadline := b.now().Add(b.waitTimeout)
	for {
		ok, wait := b.take()
		if ok {
			return nil
		}
		if b.waitTimeout > 0 && b.now().Add(wait).After(deadline) {
			return ErrRateLimitTimeout
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
