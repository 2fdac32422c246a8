// Package processors holds the built-in analysis processors. Each one
// consumes a normalized event, pulls whatever context it needs through
// the API client, and returns an outcome for the dispatcher.
package processors

import (
	"context"

	gl "github.com/xanzy/go-gitlab"
)

// API is the slice of the GitLab client the processors read from. They
// never write; delivery belongs to the dispatcher.
type API interface {
	GetMergeRequestChanges(ctx context.Context, projectID, iid int64) (*gl.MergeRequest, error)
	GetPipeline(ctx context.Context, projectID, pipelineID int64) (*gl.Pipeline, error)
	ListPipelineJobs(ctx context.Context, projectID, pipelineID int64) ([]*gl.Job, error)
}
