package processors

import (
	"context"
	"fmt"
	"strings"

	"gitaiops/internal"
)

// riskyPaths are file locations whose changes bump the review risk.
var riskyPaths = []string{
	".gitlab-ci.yml",
	"Dockerfile",
	"auth",
	"crypto",
	"secret",
	"migration",
}

// MergeRequestProcessor triages freshly opened merge requests: size and
// risk heuristics over the diff, summarized as a note plus labels.
type MergeRequestProcessor struct {
	api API
}

func NewMergeRequestProcessor(api API) *MergeRequestProcessor {
	return &MergeRequestProcessor{api: api}
}

func (p *MergeRequestProcessor) Kind() internal.Kind { return internal.KindMergeRequest }

func (p *MergeRequestProcessor) Process(ctx context.Context, evt *internal.Event) (*internal.Outcome, error) {
	action, _ := evt.Flat["object_attributes.action"].(string)
	if action != "opened" && action != "reopened" {
		// Updates and closes produce no new triage work.
		return nil, nil
	}

	mr, err := p.api.GetMergeRequestChanges(ctx, evt.ProjectID, evt.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("fetch changes for mr %d: %w", evt.SubjectID, err)
	}

	files := 0
	risky := map[string]bool{}
	for _, change := range mr.Changes {
		files++
		path := strings.ToLower(change.NewPath)
		for _, marker := range riskyPaths {
			if strings.Contains(path, marker) {
				risky[marker] = true
			}
		}
	}

	risk := "low"
	switch {
	case len(risky) > 0 || files > 50:
		risk = "high"
	case files > 10:
		risk = "medium"
	}

	var note strings.Builder
	fmt.Fprintf(&note, "## Merge request triage\n\n")
	fmt.Fprintf(&note, "- Files changed: %d\n", files)
	fmt.Fprintf(&note, "- Risk level: **%s**\n", risk)
	if len(risky) > 0 {
		markers := make([]string, 0, len(risky))
		for marker := range risky {
			markers = append(markers, marker)
		}
		fmt.Fprintf(&note, "- Sensitive areas touched: %s\n", strings.Join(markers, ", "))
	}

	return &internal.Outcome{
		Summary: note.String(),
		Labels:  []string{"triage::" + risk + "-risk"},
	}, nil
}
