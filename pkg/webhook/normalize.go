package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/PaesslerAG/jsonpath"
	gitlabhooks "github.com/go-playground/webhooks/v6/gitlab"

	"gitaiops/internal"
)

// KindHeader declares the webhook event family.
const KindHeader = "X-Gitlab-Event"

// ErrUnsupportedKind is returned for event headers outside the closed
// kind set.
var ErrUnsupportedKind = errors.New("unsupported event kind")

// MissingFieldError reports a payload missing a required field path.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("payload missing required field %s", e.Field)
}

// headerKinds maps the provider's event header values onto the internal
// kind set.
var headerKinds = map[gitlabhooks.Event]internal.Kind{
	gitlabhooks.MergeRequestEvents: internal.KindMergeRequest,
	gitlabhooks.PipelineEvents:     internal.KindPipeline,
	gitlabhooks.PushEvents:         internal.KindPush,
	gitlabhooks.IssuesEvents:       internal.KindIssue,
	gitlabhooks.JobEvents:          internal.KindJob,
	gitlabhooks.DeploymentEvents:   internal.KindDeployment,
}

// subjectPaths extracts the id of the thing the event is about; push has
// no numeric subject, the checkout SHA stays in the payload.
var subjectPaths = map[internal.Kind][]string{
	internal.KindMergeRequest: {"$.object_attributes.iid"},
	internal.KindPipeline:     {"$.object_attributes.id"},
	internal.KindIssue:        {"$.object_attributes.iid"},
	internal.KindJob:          {"$.build_id"},
	internal.KindDeployment:   {"$.object_attributes.id", "$.deployment_id"},
}

var projectPaths = []string{"$.project.id", "$.project_id"}

// Normalizer converts a raw webhook payload plus its declared kind header
// into an internal Event with a derived priority.
type Normalizer struct {
	priorities *internal.PriorityEngine
}

func NewNormalizer(priorities *internal.PriorityEngine) *Normalizer {
	return &Normalizer{priorities: priorities}
}

// Normalize parses the payload, resolves the kind, extracts the project
// and subject ids and derives the priority. The returned event is pending
// with zero attempts.
func (n *Normalizer) Normalize(kindHeader string, raw []byte) (*internal.Event, error) {
	kind, err := resolveKind(kindHeader, raw)
	if err != nil {
		return nil, err
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}

	projectID := intAt(payload, projectPaths...)
	if projectID == 0 {
		return nil, &MissingFieldError{Field: "project.id"}
	}

	subjectID := int64(0)
	if paths, ok := subjectPaths[kind]; ok {
		subjectID = intAt(payload, paths...)
		if subjectID == 0 {
			return nil, &MissingFieldError{Field: paths[0]}
		}
	}

	flat := internal.Flatten(payload)
	return &internal.Event{
		ID:        internal.NewEventID(kind),
		Kind:      kind,
		Priority:  n.priorities.Evaluate(kind, flat),
		ProjectID: projectID,
		SubjectID: subjectID,
		Payload:   payload,
		Flat:      flat,
		Status:    internal.StatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// resolveKind maps the event header to a kind, falling back to the
// payload's object_kind when the header uses the short form.
func resolveKind(header string, raw []byte) (internal.Kind, error) {
	if kind, ok := headerKinds[gitlabhooks.Event(header)]; ok {
		return kind, nil
	}
	if internal.ValidKind(internal.Kind(header)) {
		return internal.Kind(header), nil
	}
	var probe struct {
		ObjectKind string `json:"object_kind"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && internal.ValidKind(internal.Kind(probe.ObjectKind)) {
		return internal.Kind(probe.ObjectKind), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, header)
}

// intAt returns the first integer found at any of the JSONPath
// expressions, or 0.
func intAt(payload map[string]interface{}, paths ...string) int64 {
	for _, path := range paths {
		value, err := jsonpath.Get(path, interface{}(payload))
		if err != nil {
			continue
		}
		switch typed := value.(type) {
		case float64:
			if typed != 0 {
				return int64(typed)
			}
		case int64:
			if typed != 0 {
				return typed
			}
		case json.Number:
			if v, err := typed.Int64(); err == nil && v != 0 {
				return v
			}
		}
	}
	return 0
}
