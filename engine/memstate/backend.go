package memstate

import "sync"

// Backend is the memory store boundary. The engine only ever
// reads the whole state and writes a replacement; whether the other side is
// a flat file, key-value store, or vector index is its own concern.
type Backend interface {
	Read() (map[string]any, error)
	Write(state map[string]any) error
}

// -----------------------------------------------------------------------------
// InMemoryBackend
// -----------------------------------------------------------------------------

// InMemoryBackend keeps state in process memory. It is the default backend
// for single-invocation runs and the reference implementation for tests.
type InMemoryBackend struct {
	mu    sync.RWMutex
	state map[string]any
}

func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{state: make(map[string]any)}
}

func NewInMemoryBackendWithState(state map[string]any) *InMemoryBackend {
	if state == nil {
		state = make(map[string]any)
	}
	return &InMemoryBackend{state: state}
}

func (b *InMemoryBackend) Read() (map[string]any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state, nil
}

func (b *InMemoryBackend) Write(state map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if state == nil {
		state = make(map[string]any)
	}
	b.state = state
	return nil
}
