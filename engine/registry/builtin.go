package registry

import (
	"context"
	"fmt"

	"github.com/stepflow-ai/stepflow/engine/core"
	"github.com/stepflow-ai/stepflow/engine/task"
	"github.com/stepflow-ai/stepflow/pkg/logger"
)

// Built-in cross-cutting functions available to every task.
const (
	FnTrackProgress = "track-progress"
	FnLogEvent      = "log-event"
)

// NewWithBuiltins returns a registry pre-loaded with the progress-tracking
// and telemetry-forwarding entries. Both forward structured events to the
// logging sink; how the sink persists them is the collaborator's concern.
func NewWithBuiltins() *Registry {
	r := New()
	r.MustRegister(FnTrackProgress, []string{"phase", "detail"}, trackProgress)
	r.MustRegister(FnLogEvent, []string{"level", "message", "fields"}, logEvent)
	return r
}

func trackProgress(ctx context.Context, args []any, ec *task.ExecutionContext) (core.Output, error) {
	phase, _ := args[0].(string)
	if phase == "" {
		return nil, fmt.Errorf("track-progress requires a phase")
	}
	detail, _ := args[1].(string)
	logger.FromContext(ctx).Info("progress",
		"task_id", ec.TaskID,
		"exec_id", ec.ExecID.String(),
		"phase", phase,
		"detail", detail,
	)
	return core.Output{"phase": phase, "tracked": true}, nil
}

func logEvent(ctx context.Context, args []any, ec *task.ExecutionContext) (core.Output, error) {
	level, _ := args[0].(string)
	message, _ := args[1].(string)
	if message == "" {
		return nil, fmt.Errorf("log-event requires a message")
	}
	keyvals := []any{"task_id", ec.TaskID, "exec_id", ec.ExecID.String()}
	if fields, ok := args[2].(map[string]any); ok {
		for key, value := range fields {
			keyvals = append(keyvals, key, value)
		}
	}
	log := logger.FromContext(ctx)
	switch level {
	case "debug":
		log.Debug(message, keyvals...)
	case "warn":
		log.Warn(message, keyvals...)
	case "error":
		log.Error(message, keyvals...)
	default:
		log.Info(message, keyvals...)
	}
	return core.Output{"logged": true}, nil
}
