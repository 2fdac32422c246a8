package gitlab

import (
	"sync"
	"time"

	"gitaiops/internal"
)

const (
	stateClosed   = "closed"
	stateOpen     = "open"
	stateHalfOpen = "half_open"
)

type breakerConfig struct {
	failureThreshold int
	window           time.Duration
	cooldown         time.Duration
	halfOpenProbes   int
	successStreak    int
}

// circuitBreaker stops calls to a degraded remote host.
//
//	closed ---(threshold failures within window)---> open
//	open ---(cooldown elapsed)---> half_open
//	half_open ---(any failure)---> open
//	half_open ---(success streak)---> closed
//
// No other transitions occur. In half_open the probe budget counts
// in-flight calls: Allow takes a slot, OnSuccess, OnFailure or Release
// gives it back. A probe that never reaches the remote must be
// released, or the slot would leak and wedge the breaker.
type circuitBreaker struct {
	mu  sync.Mutex
	cfg breakerConfig
	now func() time.Time

	state       string
	failures    int
	windowStart time.Time
	openedAt    time.Time
	probes      int
	streak      int
}

func newCircuitBreaker(cfg breakerConfig) *circuitBreaker {
	b := &circuitBreaker{cfg: cfg, now: time.Now, state: stateClosed}
	internal.SetCircuitState(stateClosed)
	return b
}

// Allow reports whether a call may proceed. While open it fails fast with
// ErrCircuitOpen; in half_open only a bounded number of probes go through.
func (b *circuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return nil
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.cooldown {
			return ErrCircuitOpen
		}
		b.transition(stateHalfOpen)
		b.probes = 1
		return nil
	default: // half_open
		if b.probes >= b.cfg.halfOpenProbes {
			return ErrCircuitOpen
		}
		b.probes++
		return nil
	}
}

func (b *circuitBreaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		b.failures = 0
		b.windowStart = time.Time{}
	case stateHalfOpen:
		if b.probes > 0 {
			b.probes--
		}
		b.streak++
		if b.streak >= b.cfg.successStreak {
			b.transition(stateClosed)
			b.failures = 0
			b.windowStart = time.Time{}
		}
	}
}

// Release gives back a probe slot taken by Allow when the admitted call
// ended without reaching the remote (limiter timeout, cancelled
// context). Such a call says nothing about remote health, so no state
// changes.
func (b *circuitBreaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateHalfOpen && b.probes > 0 {
		b.probes--
	}
}

func (b *circuitBreaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case stateClosed:
		if b.windowStart.IsZero() || now.Sub(b.windowStart) > b.cfg.window {
			b.windowStart = now
			b.failures = 0
		}
		b.failures++
		if b.failures >= b.cfg.failureThreshold {
			b.transition(stateOpen)
			b.openedAt = now
		}
	case stateHalfOpen:
		b.transition(stateOpen)
		b.openedAt = now
	}
}

// State returns the current breaker state name.
func (b *circuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *circuitBreaker) transition(state string) {
	b.state = state
	b.probes = 0
	b.streak = 0
	internal.SetCircuitState(state)
}
