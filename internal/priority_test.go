package internal

import "testing"

func mustEngine(t *testing.T, rules []PriorityRule) *PriorityEngine {
	t.Helper()
	engine, err := NewPriorityEngine(rules, nil)
	if err != nil {
		t.Fatalf("NewPriorityEngine: %v", err)
	}
	return engine
}

func TestEvaluateDefaults(t *testing.T) {
	engine := mustEngine(t, nil)

	cases := []struct {
		name string
		kind Kind
		flat map[string]interface{}
		want int
	}{
		{
			name: "pipeline failed",
			kind: KindPipeline,
			flat: map[string]interface{}{"object_attributes.status": "failed"},
			want: PriorityHigh,
		},
		{
			name: "pipeline running",
			kind: KindPipeline,
			flat: map[string]interface{}{"object_attributes.status": "running"},
			want: PriorityMedium,
		},
		{
			name: "pipeline success",
			kind: KindPipeline,
			flat: map[string]interface{}{"object_attributes.status": "success"},
			want: PriorityLow,
		},
		{
			name: "merge request opened",
			kind: KindMergeRequest,
			flat: map[string]interface{}{"object_attributes.action": "opened"},
			want: PriorityMedium,
		},
		{
			name: "merge request merged",
			kind: KindMergeRequest,
			flat: map[string]interface{}{"object_attributes.action": "merge"},
			want: PriorityHigh,
		},
		{
			name: "plain push",
			kind: KindPush,
			flat: Flatten(map[string]interface{}{
				"commits": []interface{}{
					map[string]interface{}{"message": "update readme"},
				},
			}),
			want: PriorityLow,
		},
		{
			name: "push mentioning security",
			kind: KindPush,
			flat: Flatten(map[string]interface{}{
				"commits": []interface{}{
					map[string]interface{}{"message": "update readme"},
					map[string]interface{}{"message": "Fix CVE-2024-1234 in auth"},
				},
			}),
			want: PriorityHigh,
		},
		{
			name: "deployment default",
			kind: KindDeployment,
			flat: map[string]interface{}{},
			want: PriorityMedium,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := engine.Evaluate(tc.kind, tc.flat); got != tc.want {
				t.Fatalf("Evaluate() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestEvaluateConfiguredRuleWinsOverDefault(t *testing.T) {
	engine := mustEngine(t, []PriorityRule{
		{When: `kind == "pipeline" && [object_attributes.status] == "failed" && [object_attributes.ref] == "main"`, Priority: "critical"},
	})

	flat := map[string]interface{}{
		"object_attributes.status": "failed",
		"object_attributes.ref":    "main",
	}
	if got := engine.Evaluate(KindPipeline, flat); got != PriorityCritical {
		t.Fatalf("Evaluate() = %d, want %d", got, PriorityCritical)
	}

	// A failure off the protected branch falls through to the default rule.
	flat["object_attributes.ref"] = "feature/x"
	if got := engine.Evaluate(KindPipeline, flat); got != PriorityHigh {
		t.Fatalf("Evaluate() = %d, want %d", got, PriorityHigh)
	}
}

func TestNewPriorityEngineRejectsBadRule(t *testing.T) {
	if _, err := NewPriorityEngine([]PriorityRule{{When: `kind ==`, Priority: "high"}}, nil); err == nil {
		t.Fatalf("expected error for malformed expression")
	}
	if _, err := NewPriorityEngine([]PriorityRule{{When: `kind == "push"`, Priority: "urgent"}}, nil); err == nil {
		t.Fatalf("expected error for unknown priority level")
	}
}

func TestParsePriority(t *testing.T) {
	if got, err := ParsePriority(" High "); err != nil || got != PriorityHigh {
		t.Fatalf("ParsePriority(High) = %d, %v", got, err)
	}
	if _, err := ParsePriority("whenever"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
