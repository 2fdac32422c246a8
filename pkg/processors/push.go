package processors

import (
	"context"
	"fmt"
	"strings"

	"gitaiops/internal"
)

// secretMarkers are path fragments that suggest credentials or key
// material landed in a push.
var secretMarkers = []string{
	".env",
	"id_rsa",
	".pem",
	"credentials",
	"secret",
	"password",
}

// PushProcessor scans pushed commits for files that look like leaked
// secrets and opens a security issue when it finds any. Clean pushes
// produce no outcome.
type PushProcessor struct{}

func NewPushProcessor() *PushProcessor { return &PushProcessor{} }

func (p *PushProcessor) Kind() internal.Kind { return internal.KindPush }

func (p *PushProcessor) Process(ctx context.Context, evt *internal.Event) (*internal.Outcome, error) {
	commits, _ := evt.Payload["commits"].([]interface{})

	findings := make([]string, 0)
	for _, raw := range commits {
		commit, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := commit["id"].(string)
		if len(id) > 8 {
			id = id[:8]
		}
		for _, listKey := range []string{"added", "modified"} {
			paths, _ := commit[listKey].([]interface{})
			for _, rawPath := range paths {
				path, _ := rawPath.(string)
				lower := strings.ToLower(path)
				for _, marker := range secretMarkers {
					if strings.Contains(lower, marker) {
						findings = append(findings, fmt.Sprintf("`%s` in commit %s", path, id))
						break
					}
				}
			}
		}
	}

	if len(findings) == 0 {
		return nil, nil
	}

	var desc strings.Builder
	fmt.Fprintf(&desc, "A push touched files that may contain sensitive material:\n\n")
	for _, finding := range findings {
		fmt.Fprintf(&desc, "- %s\n", finding)
	}
	fmt.Fprintf(&desc, "\nReview these files and rotate any exposed credentials.\n")

	return &internal.Outcome{
		Issue: &internal.IssueSpec{
			Title:       "Possible sensitive files in recent push",
			Description: desc.String(),
			Labels:      []string{"security"},
		},
	}, nil
}
