package action

import (
	"context"
	"fmt"

	"github.com/stepflow-ai/stepflow/engine/core"
	"github.com/stepflow-ai/stepflow/engine/task"
)

// haltIf implements workflow:halt-if, the engine's only mid-task
// cancellation primitive. When the condition holds, the task aborts with
// the caller-supplied message; the runner unwinds through the cleanup
// registry before returning.
func (d *Dispatcher) haltIf(
	ctx context.Context,
	actionID string,
	inputs core.Input,
	ec *task.ExecutionContext,
) (core.Output, error) {
	message, err := stringInput(actionID, inputs, "message")
	if err != nil {
		return nil, err
	}
	halt, err := d.resolveCondition(ctx, actionID, inputs, ec)
	if err != nil {
		return nil, err
	}
	if halt {
		return nil, core.NewHaltError("", message)
	}
	return core.Output{"halted": false}, nil
}

func (d *Dispatcher) resolveCondition(
	ctx context.Context,
	actionID string,
	inputs core.Input,
	ec *task.ExecutionContext,
) (bool, error) {
	raw, ok := inputs["condition"]
	if !ok || raw == nil {
		return false, core.NewActionExecutionError(actionID, inputs,
			fmt.Errorf("required input %q is absent", "condition"))
	}
	switch condition := raw.(type) {
	case bool:
		return condition, nil
	case string:
		result, err := d.evaluator.Evaluate(ctx, condition, ec.TemplateData())
		if err != nil {
			return false, core.NewActionExecutionError(actionID, inputs, err)
		}
		return result, nil
	default:
		return false, core.NewActionExecutionError(actionID, inputs,
			fmt.Errorf("input %q must be a boolean or expression", "condition"))
	}
}
