package action

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/stepflow-ai/stepflow/engine/core"
	"github.com/stepflow-ai/stepflow/engine/task"
	"github.com/stepflow-ai/stepflow/pkg/tplengine"
)

// Built-in namespaced actions. The set is closed: dispatch is an exhaustive
// switch, and anything else fails as an ActionExecutionError. Open plug-in
// behavior lives in the function registry, not here.
const (
	FileRead               = "file:read"
	FileWrite              = "file:write"
	DataExtractFrontmatter = "data:extract-frontmatter"
	ProcessExecute         = "process:execute"
	LogicEvaluate          = "logic:evaluate"
	WorkflowHaltIf         = "workflow:halt-if"
)

// ExecConfig bounds process actions: scripts may only be invoked from the
// allow-listed directories and run under the configured timeout.
type ExecConfig struct {
	AllowedDirs []string
	Timeout     time.Duration
	MaxStdout   int64
	MaxStderr   int64
}

// Dispatcher executes built-in namespaced actions. It is stateless across
// calls; everything execution-scoped arrives through the ExecutionContext.
type Dispatcher struct {
	fs        afero.Fs
	evaluator *tplengine.Evaluator
	exec      ExecConfig
}

func NewDispatcher(fs afero.Fs, evaluator *tplengine.Evaluator, exec ExecConfig) *Dispatcher {
	return &Dispatcher{fs: fs, evaluator: evaluator, exec: exec}
}

// Execute runs the action identified by namespace:verb with fully resolved
// inputs and returns its named outputs.
func (d *Dispatcher) Execute(
	ctx context.Context,
	actionID string,
	inputs core.Input,
	ec *task.ExecutionContext,
) (core.Output, error) {
	switch actionID {
	case FileRead:
		return d.readFile(actionID, inputs, ec)
	case FileWrite:
		return d.writeFile(ctx, actionID, inputs, ec)
	case DataExtractFrontmatter:
		return d.extractFrontmatter(actionID, inputs)
	case ProcessExecute:
		return d.executeProcess(ctx, actionID, inputs, ec)
	case LogicEvaluate:
		return d.evaluateLogic(ctx, actionID, inputs, ec)
	case WorkflowHaltIf:
		return d.haltIf(ctx, actionID, inputs, ec)
	default:
		return nil, core.NewActionExecutionError(actionID, inputs, fmt.Errorf("unknown action"))
	}
}

// stringInput extracts a required string input; absence or a non-string
// value is the consuming action's failure.
func stringInput(actionID string, inputs core.Input, key string) (string, error) {
	raw, ok := inputs[key]
	if !ok || raw == nil {
		return "", core.NewActionExecutionError(actionID, inputs, fmt.Errorf("required input %q is absent", key))
	}
	value, ok := raw.(string)
	if !ok {
		return "", core.NewActionExecutionError(actionID, inputs, fmt.Errorf("input %q must be a string", key))
	}
	return value, nil
}
