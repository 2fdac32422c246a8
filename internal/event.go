package internal

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the webhook event family an Event was derived from.
type Kind string

const (
	KindMergeRequest Kind = "merge_request"
	KindPipeline     Kind = "pipeline"
	KindPush         Kind = "push"
	KindIssue        Kind = "issue"
	KindJob          Kind = "job"
	KindDeployment   Kind = "deployment"
)

// Kinds lists every supported event kind.
var Kinds = []Kind{KindMergeRequest, KindPipeline, KindPush, KindIssue, KindJob, KindDeployment}

func ValidKind(k Kind) bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Priority levels. Higher dequeues first.
const (
	PriorityLow      = 1
	PriorityMedium   = 2
	PriorityHigh     = 3
	PriorityCritical = 4
)

// Status is the lifecycle state of an Event.
//
// State machine:
//
//	[pending] ---(worker claims)---> [in_progress]
//	[in_progress] ---(success)---> [succeeded]
//	[in_progress] ---(transient failure, attempts remain)---> [pending]
//	[in_progress] ---(transient failure, attempts exhausted)---> [abandoned]
//	[in_progress] ---(terminal failure)---> [abandoned]
//
// succeeded and abandoned are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusAbandoned  Status = "abandoned"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusAbandoned
}

// Event is the internal unit of work derived from a webhook notification.
// Payload and Flat are read-only after normalization; Attempts, Status and
// the timestamps are owned by whichever worker has claimed the event.
type Event struct {
	ID        string                 `json:"id"`
	Kind      Kind                   `json:"kind"`
	Priority  int                    `json:"priority"`
	ProjectID int64                  `json:"project_id"`
	SubjectID int64                  `json:"subject_id"`
	Payload   map[string]interface{} `json:"payload"`
	Flat      map[string]interface{} `json:"-"`

	Attempts      int       `json:"attempts"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
	LastError     string    `json:"last_error,omitempty"`
}

// NewEventID builds an event identifier of the form <kind>_<8 hex chars>.
func NewEventID(kind Kind) string {
	return string(kind) + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Outcome is what a processor hands to the dispatcher on success. A nil
// Outcome means the processor decided there is nothing to deliver.
type Outcome struct {
	// Summary is posted as a note on the event's merge request when set.
	Summary string
	// Labels are added to the merge request when set.
	Labels []string
	// Issue is created on the project when set.
	Issue *IssueSpec
}

// IssueSpec describes an issue to open on the target project.
type IssueSpec struct {
	Title       string
	Description string
	Labels      []string
}

// Notification is published on the outcome stream once an event reaches a
// terminal status.
type Notification struct {
	EventID    string    `json:"event_id"`
	Kind       Kind      `json:"kind"`
	Status     Status    `json:"status"`
	Priority   int       `json:"priority"`
	ProjectID  int64     `json:"project_id"`
	SubjectID  int64     `json:"subject_id"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}
