package task

import (
	"fmt"

	"github.com/mohae/deepcopy"

	"github.com/stepflow-ai/stepflow/engine/cleanup"
	"github.com/stepflow-ai/stepflow/engine/core"
	"github.com/stepflow-ai/stepflow/engine/memstate"
)

// Reserved template namespaces; output bindings may not shadow them.
const (
	ContextKeyInput = "input"
	ContextKeySteps = "steps"
)

// ExecutionContext is the accumulating key/value store threaded through one
// task invocation. It is created fresh per invocation, seeded from the task
// input, and extended only by validated step outputs. Keys are unique for
// the whole execution and never silently overwritten.
type ExecutionContext struct {
	ExecID core.ID
	TaskID string

	input   core.Input
	values  map[string]any
	steps   map[string]any
	cwd     *core.PathCWD
	memory  *memstate.Manager
	cleanup *cleanup.Registry
}

func NewExecutionContext(t *Config, input core.Input, memory *memstate.Manager) *ExecutionContext {
	if input == nil {
		input = core.Input{}
	}
	return &ExecutionContext{
		ExecID:  core.NewID(),
		TaskID:  t.ID,
		input:   input,
		values:  make(map[string]any),
		steps:   make(map[string]any),
		cwd:     t.GetCWD(),
		memory:  memory,
		cleanup: cleanup.NewRegistry(),
	}
}

func (ec *ExecutionContext) Input() core.Input {
	return ec.input
}

func (ec *ExecutionContext) CWD() *core.PathCWD {
	return ec.cwd
}

func (ec *ExecutionContext) SetCWD(cwd *core.PathCWD) {
	ec.cwd = cwd
}

func (ec *ExecutionContext) Memory() *memstate.Manager {
	return ec.memory
}

func (ec *ExecutionContext) Cleanup() *cleanup.Registry {
	return ec.cleanup
}

// Value returns a context binding by name.
func (ec *ExecutionContext) Value(key string) (any, bool) {
	value, ok := ec.values[key]
	return value, ok
}

// SetBinding stores a validated step output under key. Existing keys are a
// contract violation, never silently replaced.
func (ec *ExecutionContext) SetBinding(key string, value any) error {
	if key == ContextKeyInput || key == ContextKeySteps {
		return fmt.Errorf("context key %q is reserved", key)
	}
	if _, exists := ec.values[key]; exists {
		return fmt.Errorf("context key %q already set", key)
	}
	ec.values[key] = value
	return nil
}

// RecordStepOutput exposes a step's validated raw output under
// steps.<id>.output for later steps.
func (ec *ExecutionContext) RecordStepOutput(stepID string, output core.Output) {
	ec.steps[stepID] = map[string]any{"output": output.AsMap()}
}

// HasStepOutput reports whether the step already produced a validated output.
func (ec *ExecutionContext) HasStepOutput(stepID string) bool {
	_, ok := ec.steps[stepID]
	return ok
}

// TemplateData builds the resolution context for templates and boolean
// expressions: flat bindings at the top level plus the reserved input and
// steps namespaces. The returned map is a deep copy; resolvers and
// evaluators cannot mutate execution state through it.
func (ec *ExecutionContext) TemplateData() map[string]any {
	data := make(map[string]any, len(ec.values)+2)
	for key, value := range ec.values {
		data[key] = value
	}
	data[ContextKeyInput] = map[string]any(ec.input)
	data[ContextKeySteps] = ec.steps
	copied, ok := deepcopy.Copy(data).(map[string]any)
	if !ok {
		return data
	}
	return copied
}
