package planner

import (
	"context"

	"github.com/stepflow-ai/stepflow/engine/task"
	"github.com/stepflow-ai/stepflow/pkg/logger"
)

// Planner decides, exactly once per task and before any step runs, whether
// to replace it with a decomposed set of smaller tasks.
type Planner struct {
	thresholds Thresholds
	audit      *AuditLog
}

func New(thresholds Thresholds, audit *AuditLog) *Planner {
	return &Planner{thresholds: thresholds, audit: audit}
}

func (p *Planner) Thresholds() Thresholds {
	return p.thresholds
}

// Plan analyzes the task, decides, audit-logs the decision, and returns the
// (possibly replaced) task list.
func (p *Planner) Plan(ctx context.Context, cfg *task.Config) ([]*task.Config, Decision) {
	metrics := Analyze(cfg)
	decision := Decide(metrics, p.thresholds, OverrideFromTags(cfg))
	tasks := Decompose(cfg, decision, p.thresholds.TaskCount)
	outcome := "skip"
	if decision.Apply {
		outcome = "apply"
	}
	if p.audit != nil {
		record := &AuditRecord{
			TaskID:     cfg.ID,
			Thresholds: p.thresholds,
			Decision:   decision,
			Outcome:    outcome,
			SubTasks:   len(tasks),
		}
		if err := p.audit.Append(record); err != nil {
			logger.FromContext(ctx).Warn("failed to append decomposition audit record",
				"task_id", cfg.ID, "error", err)
		}
	}
	logger.FromContext(ctx).Debug("decomposition decision",
		"task_id", cfg.ID, "outcome", outcome, "reasons", decision.Reasons)
	return tasks, decision
}
