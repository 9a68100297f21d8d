package cleanup

import (
	"context"
	"fmt"
	"sync"

	"github.com/stepflow-ai/stepflow/pkg/logger"
)

// Fn is a compensating action run during teardown.
type Fn func(ctx context.Context) error

type entry struct {
	description string
	fn          Fn
}

// Registry collects compensating actions and runs them in strict reverse
// registration order. Execution is best-effort: one failing cleanup never
// blocks the remaining ones.
type Registry struct {
	mu      sync.Mutex
	entries []entry
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(description string, fn Fn) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry{description: description, fn: fn})
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// ExecuteAll runs every registered cleanup, LIFO. Failures (errors and
// panics alike) are logged with the entry's description and swallowed.
func (r *Registry) ExecuteAll(ctx context.Context) {
	r.mu.Lock()
	snapshot := make([]entry, len(r.entries))
	copy(snapshot, r.entries)
	r.mu.Unlock()

	log := logger.FromContext(ctx)
	for i := len(snapshot) - 1; i >= 0; i-- {
		item := snapshot[i]
		if err := runOne(ctx, item); err != nil {
			log.Warn("cleanup action failed", "description", item.description, "error", err)
		}
	}
}

func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

func (r *Registry) ExecuteAndClear(ctx context.Context) {
	r.ExecuteAll(ctx)
	r.Clear()
}

func runOne(ctx context.Context, item entry) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("cleanup panicked: %v", recovered)
		}
	}()
	return item.fn(ctx)
}
