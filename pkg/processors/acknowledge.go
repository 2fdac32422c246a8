package processors

import (
	"context"

	"gitaiops/internal"
)

// AcknowledgeProcessor completes events whose kind has no analysis
// wired. The terminal notification on the outcome stream is its only
// output; without a registered processor these events would be
// abandoned and counted as hard failures.
type AcknowledgeProcessor struct {
	kind internal.Kind
}

func NewAcknowledgeProcessor(kind internal.Kind) *AcknowledgeProcessor {
	return &AcknowledgeProcessor{kind: kind}
}

func (p *AcknowledgeProcessor) Kind() internal.Kind { return p.kind }

func (p *AcknowledgeProcessor) Process(ctx context.Context, evt *internal.Event) (*internal.Outcome, error) {
	return nil, nil
}
