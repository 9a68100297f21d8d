package action

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/stepflow-ai/stepflow/engine/core"
	"github.com/stepflow-ai/stepflow/engine/task"
	"github.com/stepflow-ai/stepflow/pkg/logger"
)

// readFile implements file:read. The path resolves inside the project root
// only; a missing file is a normal typed failure, not a crash.
func (d *Dispatcher) readFile(actionID string, inputs core.Input, ec *task.ExecutionContext) (core.Output, error) {
	path, err := stringInput(actionID, inputs, "path")
	if err != nil {
		return nil, err
	}
	resolved, err := ec.CWD().JoinAndCheck(path)
	if err != nil {
		return nil, core.NewActionExecutionError(actionID, inputs, err)
	}
	data, err := afero.ReadFile(d.fs, resolved)
	if err != nil {
		return nil, core.NewActionExecutionError(actionID, inputs,
			fmt.Errorf("failed to read file %q: %w", path, err))
	}
	return core.Output{
		"content": string(data),
		"path":    resolved,
		"size":    len(data),
	}, nil
}

// writeFile implements file:write. Files created by a step are a side
// effect needing teardown, so a compensating removal is pushed onto the
// cleanup registry.
func (d *Dispatcher) writeFile(
	ctx context.Context,
	actionID string,
	inputs core.Input,
	ec *task.ExecutionContext,
) (core.Output, error) {
	path, err := stringInput(actionID, inputs, "path")
	if err != nil {
		return nil, err
	}
	content, err := stringInput(actionID, inputs, "content")
	if err != nil {
		return nil, err
	}
	resolved, err := ec.CWD().JoinAndCheck(path)
	if err != nil {
		return nil, core.NewActionExecutionError(actionID, inputs, err)
	}
	_, statErr := d.fs.Stat(resolved)
	created := os.IsNotExist(statErr)
	if err := d.fs.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, core.NewActionExecutionError(actionID, inputs, err)
	}
	if err := afero.WriteFile(d.fs, resolved, []byte(content), 0o644); err != nil {
		return nil, core.NewActionExecutionError(actionID, inputs, err)
	}
	if created {
		fs := d.fs
		ec.Cleanup().Register(fmt.Sprintf("remove created file %s", resolved), func(cleanupCtx context.Context) error {
			logger.FromContext(cleanupCtx).Debug("removing file created by task", "path", resolved)
			return fs.Remove(resolved)
		})
	}
	return core.Output{
		"path":          resolved,
		"bytes_written": len(content),
		"created":       created,
	}, nil
}
