package scheduler

import (
	"context"

	"gitaiops/internal"
)

// Processor handles one event kind. Implementations fetch whatever
// context they need through the API client and return an Outcome for the
// dispatcher, or nil when there is nothing to deliver.
type Processor interface {
	Kind() internal.Kind
	Process(ctx context.Context, evt *internal.Event) (*internal.Outcome, error)
}

// Dispatcher delivers processor outcomes and records terminal failures.
type Dispatcher interface {
	Deliver(ctx context.Context, evt *internal.Event, out *internal.Outcome) error
	ReportAbandoned(ctx context.Context, evt *internal.Event)
}
