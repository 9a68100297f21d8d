package action

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow-ai/stepflow/engine/core"
	"github.com/stepflow-ai/stepflow/engine/task"
	"github.com/stepflow-ai/stepflow/pkg/tplengine"
)

func testDispatcher(t *testing.T) (*Dispatcher, afero.Fs) {
	t.Helper()
	evaluator, err := tplengine.NewEvaluator()
	require.NoError(t, err)
	fs := afero.NewMemMapFs()
	return NewDispatcher(fs, evaluator, ExecConfig{
		AllowedDirs: []string{"/project/scripts"},
		Timeout:     5 * time.Second,
		MaxStdout:   1 << 16,
		MaxStderr:   1 << 16,
	}), fs
}

func testExecContext(t *testing.T) *task.ExecutionContext {
	t.Helper()
	cfg := &task.Config{
		ID: "demo",
		Steps: []task.Step{{
			ID:      "s1",
			Actions: []task.Action{{ID: "file:read", Description: "read"}},
		}},
	}
	require.NoError(t, cfg.SetCWD("/project"))
	return task.NewExecutionContext(cfg, nil, nil)
}

func TestDispatch(t *testing.T) {
	t.Run("Should fail unknown actions with a typed error", func(t *testing.T) {
		d, _ := testDispatcher(t)
		_, err := d.Execute(context.Background(), "file:delete", core.Input{}, testExecContext(t))
		require.Error(t, err)
		assert.Equal(t, core.CodeActionExecution, core.CodeOf(err))
		var actionErr *core.ActionExecutionError
		require.ErrorAs(t, err, &actionErr)
		assert.Equal(t, "file:delete", actionErr.Action)
	})
}

func TestFileRead(t *testing.T) {
	t.Run("Should read a file inside the project root", func(t *testing.T) {
		d, fs := testDispatcher(t)
		require.NoError(t, afero.WriteFile(fs, "/project/docs/a.md", []byte("hello"), 0o644))
		out, err := d.Execute(context.Background(), FileRead, core.Input{"path": "docs/a.md"}, testExecContext(t))
		require.NoError(t, err)
		assert.Equal(t, "hello", out["content"])
		assert.Equal(t, 5, out["size"])
	})
	t.Run("Should fail a missing file naming the path", func(t *testing.T) {
		d, _ := testDispatcher(t)
		_, err := d.Execute(context.Background(), FileRead, core.Input{"path": "docs/none.md"}, testExecContext(t))
		require.Error(t, err)
		assert.Equal(t, core.CodeActionExecution, core.CodeOf(err))
		assert.Contains(t, err.Error(), "docs/none.md")
	})
	t.Run("Should reject paths escaping the project root", func(t *testing.T) {
		d, _ := testDispatcher(t)
		_, err := d.Execute(context.Background(), FileRead, core.Input{"path": "../secret"}, testExecContext(t))
		require.Error(t, err)
		assert.Equal(t, core.CodeActionExecution, core.CodeOf(err))
	})
	t.Run("Should require the path input", func(t *testing.T) {
		d, _ := testDispatcher(t)
		_, err := d.Execute(context.Background(), FileRead, core.Input{}, testExecContext(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `required input "path" is absent`)
	})
}

func TestFileWrite(t *testing.T) {
	t.Run("Should write content and report creation", func(t *testing.T) {
		d, fs := testDispatcher(t)
		ec := testExecContext(t)
		out, err := d.Execute(context.Background(), FileWrite, core.Input{
			"path":    "out/result.md",
			"content": "summary",
		}, ec)
		require.NoError(t, err)
		assert.Equal(t, true, out["created"])
		assert.Equal(t, 7, out["bytes_written"])
		data, err := afero.ReadFile(fs, "/project/out/result.md")
		require.NoError(t, err)
		assert.Equal(t, "summary", string(data))
	})
	t.Run("Should register a compensating removal for created files", func(t *testing.T) {
		d, fs := testDispatcher(t)
		ec := testExecContext(t)
		_, err := d.Execute(context.Background(), FileWrite, core.Input{
			"path":    "out/tmp.md",
			"content": "x",
		}, ec)
		require.NoError(t, err)
		require.Equal(t, 1, ec.Cleanup().Len())
		ec.Cleanup().ExecuteAndClear(context.Background())
		exists, err := afero.Exists(fs, "/project/out/tmp.md")
		require.NoError(t, err)
		assert.False(t, exists)
	})
	t.Run("Should not register cleanup when overwriting an existing file", func(t *testing.T) {
		d, fs := testDispatcher(t)
		ec := testExecContext(t)
		require.NoError(t, afero.WriteFile(fs, "/project/out/keep.md", []byte("old"), 0o644))
		out, err := d.Execute(context.Background(), FileWrite, core.Input{
			"path":    "out/keep.md",
			"content": "new",
		}, ec)
		require.NoError(t, err)
		assert.Equal(t, false, out["created"])
		assert.Equal(t, 0, ec.Cleanup().Len())
	})
}

func TestLogicEvaluate(t *testing.T) {
	t.Run("Should evaluate boolean expressions against the context", func(t *testing.T) {
		d, _ := testDispatcher(t)
		ec := testExecContext(t)
		require.NoError(t, ec.SetBinding("count", 3))
		out, err := d.Execute(context.Background(), LogicEvaluate, core.Input{
			"expression": "count > 2",
		}, ec)
		require.NoError(t, err)
		assert.Equal(t, true, out["result"])
	})
	t.Run("Should fold evaluation failures into an action error", func(t *testing.T) {
		d, _ := testDispatcher(t)
		_, err := d.Execute(context.Background(), LogicEvaluate, core.Input{
			"expression": "1 + 1",
		}, testExecContext(t))
		require.Error(t, err)
		assert.Equal(t, core.CodeActionExecution, core.CodeOf(err))
	})
}

func TestHaltIf(t *testing.T) {
	t.Run("Should halt with the caller message when the condition holds", func(t *testing.T) {
		d, _ := testDispatcher(t)
		_, err := d.Execute(context.Background(), WorkflowHaltIf, core.Input{
			"condition": true,
			"message":   "nothing to do",
		}, testExecContext(t))
		require.Error(t, err)
		var haltErr *core.TaskExecutionError
		require.ErrorAs(t, err, &haltErr)
		assert.Equal(t, "nothing to do", haltErr.HaltMessage)
	})
	t.Run("Should continue when the condition is false", func(t *testing.T) {
		d, _ := testDispatcher(t)
		out, err := d.Execute(context.Background(), WorkflowHaltIf, core.Input{
			"condition": false,
			"message":   "unused",
		}, testExecContext(t))
		require.NoError(t, err)
		assert.Equal(t, false, out["halted"])
	})
	t.Run("Should evaluate string conditions as expressions", func(t *testing.T) {
		d, _ := testDispatcher(t)
		ec := testExecContext(t)
		require.NoError(t, ec.SetBinding("failed", true))
		_, err := d.Execute(context.Background(), WorkflowHaltIf, core.Input{
			"condition": "failed == true",
			"message":   "upstream failed",
		}, ec)
		require.Error(t, err)
		var haltErr *core.TaskExecutionError
		require.ErrorAs(t, err, &haltErr)
		assert.Equal(t, "upstream failed", haltErr.HaltMessage)
	})
	t.Run("Should require both condition and message", func(t *testing.T) {
		d, _ := testDispatcher(t)
		_, err := d.Execute(context.Background(), WorkflowHaltIf, core.Input{"condition": true}, testExecContext(t))
		assert.Error(t, err)
		_, err = d.Execute(context.Background(), WorkflowHaltIf, core.Input{"message": "m"}, testExecContext(t))
		assert.Error(t, err)
	})
}

func TestProcessExecuteGuards(t *testing.T) {
	t.Run("Should refuse execution without an allow-list", func(t *testing.T) {
		evaluator, err := tplengine.NewEvaluator()
		require.NoError(t, err)
		d := NewDispatcher(afero.NewMemMapFs(), evaluator, ExecConfig{})
		_, err = d.Execute(context.Background(), ProcessExecute, core.Input{
			"command": "scripts/run.sh",
		}, testExecContext(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disabled")
	})
	t.Run("Should refuse commands outside allow-listed directories", func(t *testing.T) {
		d, _ := testDispatcher(t)
		_, err := d.Execute(context.Background(), ProcessExecute, core.Input{
			"command": "/usr/bin/env",
		}, testExecContext(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "allow-listed")
	})
}
