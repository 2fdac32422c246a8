package processors

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gitaiops/internal"
)

// PipelineProcessor analyzes finished pipelines. Failed pipelines produce
// an issue listing the failed jobs; successful ones get a short timing
// summary when a merge request is attached.
type PipelineProcessor struct {
	api API
	// slowJobSeconds flags jobs slower than this in the summary.
	slowJobSeconds float64
}

func NewPipelineProcessor(api API) *PipelineProcessor {
	return &PipelineProcessor{api: api, slowJobSeconds: 300}
}

func (p *PipelineProcessor) Kind() internal.Kind { return internal.KindPipeline }

func (p *PipelineProcessor) Process(ctx context.Context, evt *internal.Event) (*internal.Outcome, error) {
	status, _ := evt.Flat["object_attributes.status"].(string)
	if status != "success" && status != "failed" {
		// Only terminal pipelines are worth analyzing.
		return nil, nil
	}

	pipeline, err := p.api.GetPipeline(ctx, evt.ProjectID, evt.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("fetch pipeline %d: %w", evt.SubjectID, err)
	}
	jobs, err := p.api.ListPipelineJobs(ctx, evt.ProjectID, evt.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("list jobs for pipeline %d: %w", evt.SubjectID, err)
	}

	var failed, slow []string
	for _, job := range jobs {
		if job.Status == "failed" {
			failed = append(failed, fmt.Sprintf("%s (stage %s)", job.Name, job.Stage))
		}
		if job.Duration > p.slowJobSeconds {
			slow = append(slow, fmt.Sprintf("%s: %.0fs", job.Name, job.Duration))
		}
	}
	sort.Strings(failed)
	sort.Strings(slow)

	if status == "failed" {
		var desc strings.Builder
		fmt.Fprintf(&desc, "Pipeline %d finished with status `failed`.\n\n", pipeline.ID)
		if len(failed) > 0 {
			fmt.Fprintf(&desc, "Failed jobs:\n")
			for _, name := range failed {
				fmt.Fprintf(&desc, "- %s\n", name)
			}
		}
		if len(slow) > 0 {
			fmt.Fprintf(&desc, "\nSlow jobs worth a look:\n")
			for _, entry := range slow {
				fmt.Fprintf(&desc, "- %s\n", entry)
			}
		}
		return &internal.Outcome{
			Issue: &internal.IssueSpec{
				Title:       fmt.Sprintf("Pipeline #%d failed", pipeline.ID),
				Description: desc.String(),
				Labels:      []string{"ci", "pipeline-failure"},
			},
		}, nil
	}

	var note strings.Builder
	fmt.Fprintf(&note, "## Pipeline analysis\n\nPipeline %d succeeded in %ds.\n", pipeline.ID, pipeline.Duration)
	if len(slow) > 0 {
		fmt.Fprintf(&note, "\nSlow jobs:\n")
		for _, entry := range slow {
			fmt.Fprintf(&note, "- %s\n", entry)
		}
	}
	return &internal.Outcome{Summary: note.String()}, nil
}
