package scheduler

import (
	"context"

	"gitaiops/internal"
)

// Listener provides hooks into the pool's lifecycle for logging, metrics, etc.
type Listener struct {
	// OnStart is called when the pool starts.
	OnStart func(ctx context.Context)
	// OnExit is called when the pool exits.
	OnExit func(ctx context.Context)
	// OnEventStart is called when a worker claims an event.
	OnEventStart func(ctx context.Context, evt *internal.Event)
	// OnEventFinish is called when an attempt finishes, terminal or not.
	OnEventFinish func(ctx context.Context, evt *internal.Event, err error)
	// OnError is called when an attempt fails.
	OnError func(ctx context.Context, evt *internal.Event, err error)
}
