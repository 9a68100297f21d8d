package memstate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mohae/deepcopy"

	"github.com/stepflow-ai/stepflow/engine/core"
)

// Manager wraps a backend with begin/commit/rollback transactions. It
// permits exactly one open transaction per backend per process; concurrency
// across processes is coordinated externally, not here.
type Manager struct {
	backend Backend
	mu      sync.Mutex
	open    *Tx
}

func NewManager(backend Backend) *Manager {
	return &Manager{backend: backend}
}

// Checkpoint is an immutable snapshot of backend state. Restoring it is a
// single Write of the snapshot, not a diff replay.
type Checkpoint struct {
	state map[string]any
}

// State returns a copy; the snapshot itself never changes after Begin.
func (c *Checkpoint) State() map[string]any {
	copied, ok := deepcopy.Copy(c.state).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return copied
}

// Tx is a single open transaction. Updates write through to the backend;
// rollback restores the checkpoint taken at Begin.
type Tx struct {
	manager    *Manager
	checkpoint *Checkpoint
	working    map[string]any
	closed     bool
}

// Begin snapshots the current backend state and opens a transaction. A
// second Begin while one is open is a caller bug and fails with
// MemoryStateError.
func (m *Manager) Begin() (*Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open != nil {
		return nil, core.NewMemoryStateError("begin", errors.New("a transaction is already open for this backend"))
	}
	current, err := m.backend.Read()
	if err != nil {
		return nil, core.NewMemoryStateError("begin", err)
	}
	snapshot, ok := deepcopy.Copy(current).(map[string]any)
	if !ok {
		snapshot = make(map[string]any)
	}
	working, ok := deepcopy.Copy(current).(map[string]any)
	if !ok {
		working = make(map[string]any)
	}
	tx := &Tx{
		manager:    m,
		checkpoint: &Checkpoint{state: snapshot},
		working:    working,
	}
	m.open = tx
	return tx, nil
}

// Execute runs fn inside a fresh transaction, committing on success and
// rolling back when fn returns an error.
func (m *Manager) Execute(fn func(tx *Tx) error) error {
	tx, err := m.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return core.NewMemoryStateError("rollback", fmt.Errorf("%w (after: %s)", rollbackErr, err.Error()))
		}
		return err
	}
	return tx.Commit()
}

// RollbackOpen rolls back the currently open transaction, if any. It is the
// recovery hook the runner calls when a MemoryStateError surfaces mid-task.
func (m *Manager) RollbackOpen() error {
	m.mu.Lock()
	tx := m.open
	m.mu.Unlock()
	if tx == nil {
		return nil
	}
	return tx.Rollback()
}

// HasOpenTx reports whether a transaction is currently open.
func (m *Manager) HasOpenTx() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open != nil
}

func (m *Manager) release(tx *Tx) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open == tx {
		m.open = nil
	}
}

// -----------------------------------------------------------------------------
// Tx
// -----------------------------------------------------------------------------

// Update applies the patch to the working state and writes it through to
// the backend. Nil values in the patch delete their keys.
func (t *Tx) Update(patch map[string]any) error {
	if t.closed {
		return core.NewMemoryStateError("update", errors.New("transaction is closed"))
	}
	for key, value := range patch {
		if value == nil {
			delete(t.working, key)
			continue
		}
		t.working[key] = value
	}
	if err := t.manager.backend.Write(t.working); err != nil {
		return core.NewMemoryStateError("update", err)
	}
	return nil
}

// Commit finalizes the working state and closes the transaction.
func (t *Tx) Commit() error {
	if t.closed {
		return core.NewMemoryStateError("commit", errors.New("transaction is closed"))
	}
	if err := t.manager.backend.Write(t.working); err != nil {
		return core.NewMemoryStateError("commit", err)
	}
	t.close()
	return nil
}

// Rollback restores the checkpoint taken at Begin. All-or-nothing: on a
// backend write failure the transaction stays open and the error surfaces.
func (t *Tx) Rollback() error {
	if t.closed {
		return core.NewMemoryStateError("rollback", errors.New("transaction is closed"))
	}
	if err := t.manager.backend.Write(t.checkpoint.State()); err != nil {
		return core.NewMemoryStateError("rollback", err)
	}
	t.close()
	return nil
}

// Checkpoint exposes the snapshot taken at Begin.
func (t *Tx) Checkpoint() *Checkpoint {
	return t.checkpoint
}

func (t *Tx) close() {
	t.closed = true
	t.manager.release(t)
}
