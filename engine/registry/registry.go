package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/stepflow-ai/stepflow/engine/core"
	"github.com/stepflow-ai/stepflow/engine/task"
)

// Fn is a registered side-effecting function. Arguments arrive positionally
// in the order the entry declared them.
type Fn func(ctx context.Context, args []any, ec *task.ExecutionContext) (core.Output, error)

type entry struct {
	argNames []string
	fn       Fn
}

// Registry is the flat table of named functions for cross-cutting side
// effects (progress tracking, telemetry forwarding). It is deliberately
// separate from the namespaced action dispatcher: entries here are open
// plug-ins, so an unknown name is a DependencyError at call time, while
// registration contracts are checked up front.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a function under name with its declared positional argument
// names. Contract mistakes (empty name, nil fn, duplicate name, duplicate
// argument names) fail here, not at call time.
func (r *Registry) Register(name string, argNames []string, fn Fn) error {
	if name == "" {
		return fmt.Errorf("function name cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("function %q cannot be nil", name)
	}
	seen := make(map[string]struct{}, len(argNames))
	for _, argName := range argNames {
		if argName == "" {
			return fmt.Errorf("function %q declares an empty argument name", name)
		}
		if _, dup := seen[argName]; dup {
			return fmt.Errorf("function %q declares argument %q twice", name, argName)
		}
		seen[argName] = struct{}{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[name]; dup {
		return fmt.Errorf("function %q is already registered", name)
	}
	r.entries[name] = entry{argNames: argNames, fn: fn}
	return nil
}

// MustRegister panics on a registration contract violation. Built-in wiring
// uses it so misdeclared entries fail at startup.
func (r *Registry) MustRegister(name string, argNames []string, fn Fn) {
	if err := r.Register(name, argNames, fn); err != nil {
		panic(err)
	}
}

// Invoke extracts the entry's declared arguments from the step inputs in
// declared order and calls the function. An unknown name is a
// DependencyError naming the missing dependency.
func (r *Registry) Invoke(ctx context.Context, name string, inputs core.Input, ec *task.ExecutionContext) (core.Output, error) {
	r.mu.RLock()
	item, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, core.NewDependencyError(name, fmt.Errorf("function is not registered"))
	}
	args := make([]any, len(item.argNames))
	for i, argName := range item.argNames {
		args[i] = inputs.Prop(argName)
	}
	return item.fn(ctx, args, ec)
}

// ArgNames returns the declared argument names of a registered function.
func (r *Registry) ArgNames(name string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	names := make([]string, len(item.argNames))
	copy(names, item.argNames)
	return names, true
}

// Names lists registered functions in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
