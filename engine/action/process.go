package action

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/stepflow-ai/stepflow/engine/core"
	"github.com/stepflow-ai/stepflow/engine/task"
	"github.com/stepflow-ai/stepflow/pkg/logger"
)

// executeProcess implements process:execute. Only scripts inside the
// allow-listed directories may run. A non-zero exit code is a normal result
// with captured output; a timeout folds into ActionExecutionError.
func (d *Dispatcher) executeProcess(
	ctx context.Context,
	actionID string,
	inputs core.Input,
	ec *task.ExecutionContext,
) (core.Output, error) {
	command, err := stringInput(actionID, inputs, "command")
	if err != nil {
		return nil, err
	}
	args, err := stringSliceInput(actionID, inputs, "args")
	if err != nil {
		return nil, err
	}
	resolved, err := d.resolveAllowedCommand(command, ec)
	if err != nil {
		return nil, core.NewActionExecutionError(actionID, inputs, err)
	}
	timeout := d.exec.Timeout
	if ms, ok := inputs["timeout_ms"].(int); ok && ms > 0 {
		requested := time.Duration(ms) * time.Millisecond
		if timeout <= 0 || requested < timeout {
			timeout = requested
		}
	}
	cmdCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		cmdCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	stdout := newLimitedBuffer(d.exec.MaxStdout)
	stderr := newLimitedBuffer(d.exec.MaxStderr)
	cmd := exec.CommandContext(cmdCtx, resolved, args...)
	cmd.Dir = ec.CWD().PathStr()
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)
	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
		return nil, core.NewActionExecutionError(actionID, inputs,
			fmt.Errorf("command %q timed out after %s", command, timeout))
	}
	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, core.NewActionExecutionError(actionID, inputs,
				fmt.Errorf("failed to execute command %q: %w", command, runErr))
		}
		exitCode = exitErr.ExitCode()
	}
	logger.FromContext(ctx).Info("executed process action",
		"exec_id", ec.ExecID.String(),
		"command", resolved,
		"exit_code", exitCode,
		"duration_ms", duration.Milliseconds(),
		"stdout_truncated", stdout.Truncated(),
		"stderr_truncated", stderr.Truncated(),
	)
	return core.Output{
		"exit_code":   exitCode,
		"stdout":      stdout.String(),
		"stderr":      stderr.String(),
		"success":     exitCode == 0,
		"duration_ms": duration.Milliseconds(),
	}, nil
}

// resolveAllowedCommand resolves the executable path and enforces the
// allow-list: the final path must live inside one of the configured
// directories.
func (d *Dispatcher) resolveAllowedCommand(command string, ec *task.ExecutionContext) (string, error) {
	if len(d.exec.AllowedDirs) == 0 {
		return "", fmt.Errorf("process execution is disabled: no allow-listed directories configured")
	}
	resolved := command
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(ec.CWD().PathStr(), resolved)
	}
	resolved, err := filepath.Abs(resolved)
	if err != nil {
		return "", fmt.Errorf("failed to resolve command path: %w", err)
	}
	for _, dir := range d.exec.AllowedDirs {
		allowedDir, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(allowedDir, resolved)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("command %q is not inside an allow-listed directory", command)
}

func stringSliceInput(actionID string, inputs core.Input, key string) ([]string, error) {
	raw, ok := inputs[key]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		if typed, ok := raw.([]string); ok {
			return typed, nil
		}
		return nil, core.NewActionExecutionError(actionID, inputs,
			fmt.Errorf("input %q must be a list of strings", key))
	}
	result := make([]string, 0, len(list))
	for _, item := range list {
		value, ok := item.(string)
		if !ok {
			value = fmt.Sprintf("%v", item)
		}
		result = append(result, value)
	}
	return result, nil
}
