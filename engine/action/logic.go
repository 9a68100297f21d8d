package action

import (
	"context"

	"github.com/stepflow-ai/stepflow/engine/core"
	"github.com/stepflow-ai/stepflow/engine/task"
)

// evaluateLogic implements logic:evaluate: a sandboxed boolean expression
// run against the execution context only.
func (d *Dispatcher) evaluateLogic(
	ctx context.Context,
	actionID string,
	inputs core.Input,
	ec *task.ExecutionContext,
) (core.Output, error) {
	expr, err := stringInput(actionID, inputs, "expression")
	if err != nil {
		return nil, err
	}
	result, err := d.evaluator.Evaluate(ctx, expr, ec.TemplateData())
	if err != nil {
		return nil, core.NewActionExecutionError(actionID, inputs, err)
	}
	return core.Output{"result": result}, nil
}
