package journal

import (
	"context"
	"iter"
	"sync"
)

// MemoryBackend keeps entries in a slice. Lost on restart; for tests and demos.
type MemoryBackend struct {
	mu        sync.RWMutex
	entries   []Entry
	byLicense map[string][]int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{byLicense: make(map[string][]int)}
}

func (m *MemoryBackend) Head(_ context.Context) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 {
		return Entry{}, false, nil
	}
	return m.entries[len(m.entries)-1], true, nil
}

func (m *MemoryBackend) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byLicense[e.License] = append(m.byLicense[e.License], len(m.entries))
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryBackend) ForLicense(_ context.Context, license string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx := m.byLicense[license]
	out := make([]Entry, 0, len(idx))
	for _, i := range idx {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *MemoryBackend) All(_ context.Context) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		m.mu.RLock()
		snapshot := append([]Entry(nil), m.entries...)
		m.mu.RUnlock()
		for _, e := range snapshot {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (m *MemoryBackend) Close() error { return nil }

// overwrite replaces an entry in place; tests use it to simulate tampering.
func (m *MemoryBackend) overwrite(seq uint64, e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[seq-1] = e
}
