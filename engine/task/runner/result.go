package runner

import (
	"github.com/stepflow-ai/stepflow/engine/core"
)

// Result is the structured outcome of one task invocation. A failed result
// carries exactly one terminal taxonomy error; retrying is the caller's
// decision, never the engine's.
type Result struct {
	TaskID       string          `json:"task_id"`
	ExecID       core.ID         `json:"exec_id"`
	Status       core.StatusType `json:"status"`
	Output       core.Output     `json:"output,omitempty"`
	FailedStepID string          `json:"failed_step_id,omitempty"`
	Err          error           `json:"-"`
}

func (r *Result) Failed() bool {
	return r.Status == core.StatusFailed
}

// ErrorCode reports the taxonomy code of the terminal error, if any.
func (r *Result) ErrorCode() string {
	if r.Err == nil {
		return ""
	}
	return core.CodeOf(r.Err)
}
