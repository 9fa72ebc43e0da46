package session

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Index maps session ids to serialized records. It is the fast path for
// Get and Set and never touches the session directories.
//
// Implementations must be safe for concurrent use. A missing id is reported
// by ok == false, not by an error.
type Index interface {
	Get(ctx context.Context, id string) (data []byte, ok bool, err error)
	Set(ctx context.Context, id string, data []byte) error
	Delete(ctx context.Context, id string) error
	All(ctx context.Context) (map[string][]byte, error)
	Len(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// MemoryIndex implements Index in process memory. It never returns errors.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string][]byte)}
}

func (m *MemoryIndex) Get(_ context.Context, id string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.entries[id]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(data), true, nil
}

func (m *MemoryIndex) Set(_ context.Context, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[id] = slices.Clone(data)
	return nil
}

func (m *MemoryIndex) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, id)
	return nil
}

// All returns a copy of every entry.
func (m *MemoryIndex) All(_ context.Context) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]byte, len(m.entries))
	for id, data := range m.entries {
		out[id] = slices.Clone(data)
	}
	return out, nil
}

func (m *MemoryIndex) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *MemoryIndex) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
	return nil
}

// IDs returns the ids currently held, sorted.
func (m *MemoryIndex) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.entries))
}
