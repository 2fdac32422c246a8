// Package dispatch delivers processor outcomes back to GitLab and
// publishes terminal-event notifications on the outcome stream.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"gitaiops/internal"
)

// API is the write-side slice of the GitLab client the dispatcher uses.
type API interface {
	CreateMergeRequestNote(ctx context.Context, projectID, iid int64, body string) error
	AddMergeRequestLabels(ctx context.Context, projectID, iid int64, labels []string) error
	CreateIssue(ctx context.Context, projectID int64, spec internal.IssueSpec) error
}

// Dispatcher posts outcomes with its own small retry cap. Delivery
// retries are deliberately separate from Event.Attempts: a flaky comment
// post must not burn the event's processing budget.
type Dispatcher struct {
	api         API
	stream      internal.Stream
	maxAttempts int
	baseDelay   time.Duration
	logger      *log.Logger
}

func New(api API, stream internal.Stream, maxAttempts int, baseDelay time.Duration, logger *log.Logger) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 2
	}
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{api: api, stream: stream, maxAttempts: maxAttempts, baseDelay: baseDelay, logger: logger}
}

// Deliver posts the outcome (when there is one) and publishes the
// success notification. A failed delivery is retried, then logged and
// counted; it is never silently swallowed.
func (d *Dispatcher) Deliver(ctx context.Context, evt *internal.Event, out *internal.Outcome) error {
	var deliverErr error
	if out != nil {
		deliverErr = internal.Attempt(ctx, d.maxAttempts, d.baseDelay, func(ctx context.Context) error {
			return d.deliverOnce(ctx, evt, out)
		})
		if deliverErr != nil {
			internal.IncDeliveryFailure()
			d.logger.Printf("delivery failed event=%s kind=%s: %v", evt.ID, evt.Kind, deliverErr)
		}
	}

	d.publish(ctx, evt, internal.StatusSucceeded, deliverErr)
	return deliverErr
}

// ReportAbandoned records a hard failure on the outcome stream.
func (d *Dispatcher) ReportAbandoned(ctx context.Context, evt *internal.Event) {
	d.publish(ctx, evt, internal.StatusAbandoned, nil)
}

func (d *Dispatcher) deliverOnce(ctx context.Context, evt *internal.Event, out *internal.Outcome) error {
	if out.Summary != "" {
		iid := noteTarget(evt)
		if iid == 0 {
			d.logger.Printf("no merge request target for note, skipping event=%s", evt.ID)
		} else {
			if err := d.api.CreateMergeRequestNote(ctx, evt.ProjectID, iid, out.Summary); err != nil {
				return fmt.Errorf("post note: %w", err)
			}
			if len(out.Labels) > 0 {
				if err := d.api.AddMergeRequestLabels(ctx, evt.ProjectID, iid, out.Labels); err != nil {
					return fmt.Errorf("add labels: %w", err)
				}
			}
		}
	}
	if out.Issue != nil {
		if err := d.api.CreateIssue(ctx, evt.ProjectID, *out.Issue); err != nil {
			return fmt.Errorf("create issue: %w", err)
		}
	}
	return nil
}

// noteTarget resolves which merge request a note belongs on: the event's
// own subject for merge_request events, the attached MR for pipelines.
func noteTarget(evt *internal.Event) int64 {
	if evt.Kind == internal.KindMergeRequest {
		return evt.SubjectID
	}
	if iid, ok := evt.Flat["merge_request.iid"].(float64); ok {
		return int64(iid)
	}
	return 0
}

func (d *Dispatcher) publish(ctx context.Context, evt *internal.Event, status internal.Status, deliverErr error) {
	if d.stream == nil {
		return
	}
	note := internal.Notification{
		EventID:    evt.ID,
		Kind:       evt.Kind,
		Status:     status,
		Priority:   evt.Priority,
		ProjectID:  evt.ProjectID,
		SubjectID:  evt.SubjectID,
		Attempts:   evt.Attempts,
		Error:      evt.LastError,
		FinishedAt: time.Now().UTC(),
	}
	if deliverErr != nil {
		note.Error = deliverErr.Error()
	}
	if err := d.stream.Publish(ctx, note); err != nil {
		d.logger.Printf("outcome publish failed event=%s: %v", evt.ID, err)
	}
}
