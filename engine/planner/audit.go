package planner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/stepflow-ai/stepflow/engine/core"
)

// AuditRecord is one appended decomposition decision: its inputs, metrics,
// crossed thresholds, and outcome.
type AuditRecord struct {
	ID         core.ID    `json:"id"`
	Timestamp  time.Time  `json:"timestamp"`
	TaskID     string     `json:"task_id"`
	Thresholds Thresholds `json:"thresholds"`
	Decision   Decision   `json:"decision"`
	Outcome    string     `json:"outcome"`
	SubTasks   int        `json:"sub_tasks"`
}

// AuditLog appends decision records as JSON lines. Appending is the only
// persistent side effect of the planner.
type AuditLog struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

func NewAuditLog(fs afero.Fs, path string) *AuditLog {
	return &AuditLog{fs: fs, path: path}
}

func (a *AuditLog) Append(record *AuditRecord) error {
	if record.ID == "" {
		record.ID = core.NewID()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if dir := filepath.Dir(a.path); dir != "." {
		if err := a.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	file, err := a.fs.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}
