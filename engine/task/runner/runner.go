package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stepflow-ai/stepflow/engine/action"
	"github.com/stepflow-ai/stepflow/engine/core"
	"github.com/stepflow-ai/stepflow/engine/memstate"
	"github.com/stepflow-ai/stepflow/engine/registry"
	"github.com/stepflow-ai/stepflow/engine/task"
	"github.com/stepflow-ai/stepflow/pkg/logger"
	"github.com/stepflow-ai/stepflow/pkg/tplengine"
)

// Runner drives one task invocation: steps execute synchronously in
// declared order, each action's inputs are resolved against the context,
// outputs enter the context only after the step's schema validates, and
// failures follow the per-kind recovery policy.
type Runner struct {
	dispatcher *action.Dispatcher
	functions  *registry.Registry
	templates  *tplengine.TemplateEngine
	memory     *memstate.Manager
}

func New(
	dispatcher *action.Dispatcher,
	functions *registry.Registry,
	templates *tplengine.TemplateEngine,
	memory *memstate.Manager,
) *Runner {
	return &Runner{
		dispatcher: dispatcher,
		functions:  functions,
		templates:  templates,
		memory:     memory,
	}
}

// Run executes the task against a fresh ExecutionContext seeded from input.
func (r *Runner) Run(ctx context.Context, cfg *task.Config, input core.Input) (result *Result) {
	ec := task.NewExecutionContext(cfg, input, r.memory)
	log := logger.FromContext(ctx)
	result = &Result{TaskID: cfg.ID, ExecID: ec.ExecID, Status: core.StatusRunning}

	// An uncaught internal fault must still surface as a taxonomy error and
	// unwind through the cleanup registry.
	defer func() {
		if recovered := recover(); recovered != nil {
			err := core.NewConfigurationError("", fmt.Sprintf("internal fault: %v", recovered), nil)
			r.fail(ctx, ec, result, "", err)
		}
	}()

	log.Info("task execution started", "task_id", cfg.ID, "exec_id", ec.ExecID.String(), "steps", len(cfg.Steps))
	for i := range cfg.Steps {
		step := &cfg.Steps[i]
		if err := ctx.Err(); err != nil {
			r.fail(ctx, ec, result, step.ID, core.NewTaskExecutionError(step.ID, "task execution canceled", err))
			return result
		}
		if err := r.runStep(ctx, ec, step); err != nil {
			if !step.IsRequired() && isSkippable(err) {
				log.Warn("optional step failed, continuing",
					"task_id", cfg.ID, "step_id", step.ID, "error", err)
				continue
			}
			r.fail(ctx, ec, result, step.ID, err)
			return result
		}
	}

	result.Status = core.StatusCompleted
	result.Output = r.collectOutput(cfg, ec)
	// Compensations only unwind failures; a completed task keeps its work.
	ec.Cleanup().Clear()
	log.Info("task execution completed", "task_id", cfg.ID, "exec_id", ec.ExecID.String())
	return result
}

func (r *Runner) runStep(ctx context.Context, ec *task.ExecutionContext, step *task.Step) error {
	stepOutput := core.Output{}
	for i := range step.Actions {
		act := &step.Actions[i]
		output, err := r.runAction(ctx, ec, step, act)
		if err != nil {
			return err
		}
		for key, value := range output {
			stepOutput[key] = value
		}
	}
	if step.Schema != nil {
		violations, err := step.Schema.Validate(ctx, stepOutput.AsMap())
		if err != nil {
			return core.NewConfigurationError("", fmt.Sprintf("step %q output schema is invalid", step.ID), err)
		}
		if len(violations) > 0 {
			return core.NewValidationError(
				fmt.Sprintf("step %q output failed schema validation", step.ID), violations)
		}
	}
	// Outputs become visible only after the validator passed.
	ec.RecordStepOutput(step.ID, stepOutput)
	for _, binding := range step.Outputs {
		value, ok := bindingValue(stepOutput, binding.From)
		if !ok {
			logger.FromContext(ctx).Debug("output binding has no value, skipping",
				"step_id", step.ID, "binding", binding.Name, "from", binding.From)
			continue
		}
		if err := ec.SetBinding(binding.Name, value); err != nil {
			return core.NewTaskExecutionError(step.ID, err.Error(), err)
		}
	}
	return nil
}

func (r *Runner) runAction(
	ctx context.Context,
	ec *task.ExecutionContext,
	step *task.Step,
	act *task.Action,
) (core.Output, error) {
	inputs, err := r.templates.ParseInput(act.Inputs, ec.TemplateData())
	if err != nil {
		return nil, core.NewActionExecutionError(act.Identifier(), act.Inputs, err)
	}
	var output core.Output
	if act.IsFunction() {
		output, err = r.functions.Invoke(ctx, act.Function, inputs, ec)
	} else {
		output, err = r.dispatcher.Execute(ctx, act.ID, inputs, ec)
	}
	if err != nil {
		annotateStep(err, step.ID)
		return nil, err
	}
	return output, nil
}

// fail applies the recovery policy: MemoryStateError gets exactly one
// rollback attempt, the cleanup registry always runs to completion, and
// the structured failure surfaces annotated with the failing step id.
func (r *Runner) fail(ctx context.Context, ec *task.ExecutionContext, result *Result, stepID string, err error) {
	log := logger.FromContext(ctx)
	err = core.Ensure(err)
	annotateStep(err, stepID)
	if core.CodeOf(err) == core.CodeMemoryState && r.memory != nil {
		if rollbackErr := r.memory.RollbackOpen(); rollbackErr != nil {
			log.Error("checkpoint rollback failed",
				"task_id", result.TaskID, "step_id", stepID, "error", rollbackErr)
		} else {
			log.Info("rolled back to last checkpoint", "task_id", result.TaskID, "step_id", stepID)
		}
	}
	ec.Cleanup().ExecuteAndClear(ctx)
	result.Status = core.StatusFailed
	result.FailedStepID = stepID
	result.Err = err
	log.Error("task execution failed",
		"task_id", result.TaskID,
		"exec_id", result.ExecID.String(),
		"step_id", stepID,
		"code", core.CodeOf(err),
		"error", err,
	)
}

func (r *Runner) collectOutput(cfg *task.Config, ec *task.ExecutionContext) core.Output {
	output := core.Output{}
	if len(cfg.Outputs) > 0 {
		for _, name := range cfg.Outputs {
			if value, ok := ec.Value(name); ok {
				output[name] = value
			}
		}
		return output
	}
	for _, step := range cfg.Steps {
		for _, binding := range step.Outputs {
			if value, ok := ec.Value(binding.Name); ok {
				output[binding.Name] = value
			}
		}
	}
	return output
}

// annotateStep stamps the failing step id onto taxonomy errors that track
// one, without overwriting an id set deeper in the call chain.
func annotateStep(err error, stepID string) {
	if stepID == "" {
		return
	}
	var haltErr *core.TaskExecutionError
	if errors.As(err, &haltErr) && haltErr.StepID == "" {
		haltErr.StepID = stepID
		haltErr.WithDetail("step_id", stepID)
		return
	}
	var actionErr *core.ActionExecutionError
	if errors.As(err, &actionErr) {
		actionErr.WithDetail("step_id", stepID)
	}
}

// isSkippable reports whether an optional step may swallow the failure.
// Halts, memory faults, and validation failures always abort.
func isSkippable(err error) bool {
	switch core.CodeOf(err) {
	case core.CodeActionExecution, core.CodeDependency:
		return true
	default:
		return false
	}
}

// bindingValue selects the bound value from a step output. An empty
// selector binds the whole output object; dotted selectors descend into
// nested maps.
func bindingValue(output core.Output, from string) (any, bool) {
	if from == "" {
		return output.AsMap(), true
	}
	var current any = map[string]any(output)
	for _, part := range strings.Split(from, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
