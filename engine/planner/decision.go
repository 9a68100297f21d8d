package planner

import (
	"fmt"

	"github.com/stepflow-ai/stepflow/engine/task"
)

// Source override tags. A tagged task skips the computed decision entirely.
const (
	TagForceDecompose = "force-decompose"
	TagSkipDecompose  = "skip-decompose"
)

type Override string

const (
	OverrideNone  Override = ""
	OverrideApply Override = "apply"
	OverrideSkip  Override = "skip"
)

// Decision is the outcome of complexity analysis: apply or skip, with the
// reasons and the measured metrics that produced it.
type Decision struct {
	Apply    bool     `json:"apply"`
	Reasons  []string `json:"reasons"`
	Metrics  Metrics  `json:"metrics"`
	Override Override `json:"override,omitempty"`
}

// OverrideFromTags maps a task's source tags onto an override. Force-apply
// wins over force-skip when both are present.
func OverrideFromTags(cfg *task.Config) Override {
	if cfg.HasTag(TagForceDecompose) {
		return OverrideApply
	}
	if cfg.HasTag(TagSkipDecompose) {
		return OverrideSkip
	}
	return OverrideNone
}

// Decide computes the decomposition decision: decompose when ANY single
// metric exceeds its threshold or at least two complexity phrases fired.
// An explicit override always wins. Pure function; called exactly once per
// task, before any step runs.
func Decide(metrics Metrics, thresholds Thresholds, override Override) Decision {
	decision := Decision{Metrics: metrics, Override: override}
	switch override {
	case OverrideApply:
		decision.Apply = true
		decision.Reasons = []string{"source override: force-decompose"}
		return decision
	case OverrideSkip:
		decision.Reasons = []string{"source override: skip-decompose"}
		return decision
	}
	type check struct {
		name      string
		value     int
		threshold int
	}
	checks := []check{
		{"taskCount", metrics.TaskCount, thresholds.TaskCount},
		{"fileCount", metrics.FileCount, thresholds.FileCount},
		{"endpointCount", metrics.EndpointCount, thresholds.EndpointCount},
		{"modelCount", metrics.ModelCount, thresholds.ModelCount},
		{"fieldCount", metrics.FieldCount, thresholds.FieldCount},
		{"criteriaCount", metrics.CriteriaCount, thresholds.CriteriaCount},
	}
	for _, c := range checks {
		if c.threshold > 0 && c.value > c.threshold {
			decision.Apply = true
			decision.Reasons = append(decision.Reasons,
				fmt.Sprintf("%s %d exceeds threshold %d", c.name, c.value, c.threshold))
		}
	}
	if len(metrics.Phrases) >= 2 {
		decision.Apply = true
		decision.Reasons = append(decision.Reasons,
			fmt.Sprintf("%d complexity phrases detected: %v", len(metrics.Phrases), metrics.Phrases))
	}
	if !decision.Apply {
		decision.Reasons = append(decision.Reasons, "all metrics within thresholds")
	}
	return decision
}
