// Package gitlab is the gateway to the remote GitLab backend. It owns the
// token bucket, the response cache and the circuit breaker; workers only
// ever reach the remote host through this client's methods.
package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gl "github.com/xanzy/go-gitlab"

	"gitaiops/internal"
)

// Client exposes the typed GitLab operations the processors and the
// dispatcher need. Credentials are injected at construction; there is no
// global state to read them from.
type Client struct {
	gl    *gl.Client
	guard *guard
}

// NewClient builds a client whose every request passes through the
// cache/breaker/limiter guard. Retries are owned by the callers (the
// retry coordinator), so the underlying client's are disabled.
func NewClient(cfg internal.GitLabConfig) (*Client, error) {
	g := &guard{
		base:   http.DefaultTransport,
		bucket: newTokenBucket(cfg.TokensPerSecond, cfg.Burst, time.Duration(cfg.RateWaitTimeoutMS)*time.Millisecond),
		breaker: newCircuitBreaker(breakerConfig{
			failureThreshold: cfg.CircuitFailureThreshold,
			window:           time.Duration(cfg.CircuitWindowMS) * time.Millisecond,
			cooldown:         time.Duration(cfg.CircuitCooldownSeconds) * time.Second,
			halfOpenProbes:   cfg.CircuitHalfOpenProbes,
			successStreak:    cfg.CircuitSuccessStreak,
		}),
		cache:     newResponseCache(),
		ttl:       time.Duration(cfg.CacheTTLSeconds) * time.Second,
		staticTTL: time.Duration(cfg.CacheStaticTTLSeconds) * time.Second,
	}

	client, err := gl.NewClient(
		cfg.Token,
		gl.WithBaseURL(cfg.BaseURL),
		gl.WithHTTPClient(&http.Client{Transport: g}),
		gl.WithoutRetries(),
	)
	if err != nil {
		return nil, fmt.Errorf("gitlab client: %w", err)
	}
	return &Client{gl: client, guard: g}, nil
}

// BreakerState reports the circuit breaker state for the health surface.
func (c *Client) BreakerState() string { return c.guard.breaker.State() }

func (c *Client) GetProject(ctx context.Context, projectID int64) (*gl.Project, error) {
	project, resp, err := c.gl.Projects.GetProject(int(projectID), nil, gl.WithContext(ctx))
	if err != nil {
		return nil, wrapAPIError("get project", status(resp), err)
	}
	return project, nil
}

func (c *Client) GetMergeRequest(ctx context.Context, projectID, iid int64) (*gl.MergeRequest, error) {
	mr, resp, err := c.gl.MergeRequests.GetMergeRequest(int(projectID), int(iid), nil, gl.WithContext(ctx))
	if err != nil {
		return nil, wrapAPIError("get merge request", status(resp), err)
	}
	return mr, nil
}

func (c *Client) GetMergeRequestChanges(ctx context.Context, projectID, iid int64) (*gl.MergeRequest, error) {
	mr, resp, err := c.gl.MergeRequests.GetMergeRequestChanges(int(projectID), int(iid), nil, gl.WithContext(ctx))
	if err != nil {
		return nil, wrapAPIError("get merge request changes", status(resp), err)
	}
	return mr, nil
}

func (c *Client) GetPipeline(ctx context.Context, projectID, pipelineID int64) (*gl.Pipeline, error) {
	pipeline, resp, err := c.gl.Pipelines.GetPipeline(int(projectID), int(pipelineID), gl.WithContext(ctx))
	if err != nil {
		return nil, wrapAPIError("get pipeline", status(resp), err)
	}
	return pipeline, nil
}

func (c *Client) ListPipelineJobs(ctx context.Context, projectID, pipelineID int64) ([]*gl.Job, error) {
	jobs, resp, err := c.gl.Jobs.ListPipelineJobs(int(projectID), int(pipelineID), &gl.ListJobsOptions{}, gl.WithContext(ctx))
	if err != nil {
		return nil, wrapAPIError("list pipeline jobs", status(resp), err)
	}
	return jobs, nil
}

func (c *Client) CreateMergeRequestNote(ctx context.Context, projectID, iid int64, body string) error {
	_, resp, err := c.gl.Notes.CreateMergeRequestNote(int(projectID), int(iid), &gl.CreateMergeRequestNoteOptions{
		Body: gl.Ptr(body),
	}, gl.WithContext(ctx))
	return wrapAPIError("create merge request note", status(resp), err)
}

func (c *Client) AddMergeRequestLabels(ctx context.Context, projectID, iid int64, labels []string) error {
	add := gl.LabelOptions(labels)
	_, resp, err := c.gl.MergeRequests.UpdateMergeRequest(int(projectID), int(iid), &gl.UpdateMergeRequestOptions{
		AddLabels: &add,
	}, gl.WithContext(ctx))
	return wrapAPIError("add merge request labels", status(resp), err)
}

func (c *Client) CreateIssue(ctx context.Context, projectID int64, spec internal.IssueSpec) error {
	labels := gl.LabelOptions(spec.Labels)
	opts := &gl.CreateIssueOptions{
		Title:       gl.Ptr(spec.Title),
		Description: gl.Ptr(spec.Description),
	}
	if len(labels) > 0 {
		opts.Labels = &labels
	}
	_, resp, err := c.gl.Issues.CreateIssue(int(projectID), opts, gl.WithContext(ctx))
	return wrapAPIError("create issue", status(resp), err)
}

func status(resp *gl.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
