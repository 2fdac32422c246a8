package internal

import (
	"fmt"
	"log"
	"strings"

	"github.com/Knetic/govaluate"
)

// PriorityRule maps a payload condition to a priority level. When is a
// govaluate expression evaluated against the flattened payload (dotted keys
// need bracket escaping, e.g. `[object_attributes.status] == "failed"`).
// The event kind is injected as the `kind` parameter.
type PriorityRule struct {
	When     string `yaml:"when"`
	Priority string `yaml:"priority"`
}

type compiledPriorityRule struct {
	priority int
	expr     *govaluate.EvaluableExpression
}

// PriorityEngine derives an Event's priority from its kind and payload.
// Configured rules are checked in order, first match wins; kind-specific
// defaults apply when nothing matches.
type PriorityEngine struct {
	rules  []compiledPriorityRule
	logger *log.Logger
}

func NewPriorityEngine(rules []PriorityRule, logger *log.Logger) (*PriorityEngine, error) {
	if logger == nil {
		logger = log.Default()
	}
	compiled := make([]compiledPriorityRule, 0, len(rules)+len(defaultPriorityRules))
	for i, rule := range append(rules, defaultPriorityRules...) {
		expr, err := govaluate.NewEvaluableExpression(rule.When)
		if err != nil {
			return nil, fmt.Errorf("priority rule %d: %w", i, err)
		}
		level, err := ParsePriority(rule.Priority)
		if err != nil {
			return nil, fmt.Errorf("priority rule %d: %w", i, err)
		}
		compiled = append(compiled, compiledPriorityRule{priority: level, expr: expr})
	}
	return &PriorityEngine{rules: compiled, logger: logger}, nil
}

// Evaluate returns the priority for an event of the given kind with the
// given flattened payload.
func (e *PriorityEngine) Evaluate(kind Kind, flat map[string]interface{}) int {
	params := make(map[string]interface{}, len(flat)+1)
	for key, value := range flat {
		params[key] = value
	}
	params["kind"] = string(kind)

	for _, rule := range e.rules {
		result, err := rule.expr.Evaluate(params)
		if err != nil {
			// Missing parameters are expected across kinds; skip the rule.
			continue
		}
		if matched, _ := result.(bool); matched {
			return rule.priority
		}
	}

	if kind == KindPush && pushMentionsSecurity(flat) {
		return PriorityHigh
	}
	return defaultKindPriority(kind)
}

// defaultPriorityRules mirror how the upstream platform ranked events: a
// failed pipeline outranks everything routine, fresh merge requests get a
// reviewer's attention, merged ones trigger follow-up work.
var defaultPriorityRules = []PriorityRule{
	{When: `kind == "pipeline" && [object_attributes.status] == "failed"`, Priority: "high"},
	{When: `kind == "pipeline" && ([object_attributes.status] == "running" || [object_attributes.status] == "pending")`, Priority: "medium"},
	{When: `kind == "merge_request" && ([object_attributes.action] == "opened" || [object_attributes.action] == "reopened")`, Priority: "medium"},
	{When: `kind == "merge_request" && [object_attributes.action] == "merge"`, Priority: "high"},
	{When: `kind == "job" && [build_status] == "failed"`, Priority: "high"},
	{When: `kind == "issue" && [object_attributes.action] == "open"`, Priority: "medium"},
}

func defaultKindPriority(kind Kind) int {
	switch kind {
	case KindDeployment:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

var securityKeywords = []string{"security", "vulnerability", "cve", "fix"}

func pushMentionsSecurity(flat map[string]interface{}) bool {
	commits, _ := flat["commits"].([]interface{})
	for _, raw := range commits {
		commit, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		message, _ := commit["message"].(string)
		message = strings.ToLower(message)
		for _, keyword := range securityKeywords {
			if strings.Contains(message, keyword) {
				return true
			}
		}
	}
	return false
}

// ParsePriority converts a configured level name to its numeric value.
func ParsePriority(name string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	default:
		return 0, fmt.Errorf("unknown priority level %q", name)
	}
}
