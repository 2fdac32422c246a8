package scheduler

import (
	"log"
	"os"
	"time"
)

// Logger is the minimal logging surface the pool needs.
type Logger interface {
	Printf(format string, args ...interface{})
}

var defaultLogger = log.New(os.Stdout, "gitaiops/scheduler ", log.LstdFlags|log.Lmicroseconds)

// Option configures a Pool.
type Option func(*Pool)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithMaxAttempts caps processing attempts per event.
func WithMaxAttempts(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the base backoff delay between attempts.
func WithBaseDelay(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.baseDelay = d
		}
	}
}

// WithGracePeriod bounds how long in-flight events may run after
// shutdown begins.
func WithGracePeriod(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.grace = d
		}
	}
}

// WithLogger sets the pool logger.
func WithLogger(l Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithListener adds a lifecycle listener.
func WithListener(listener Listener) Option {
	return func(p *Pool) {
		p.listeners = append(p.listeners, listener)
	}
}
