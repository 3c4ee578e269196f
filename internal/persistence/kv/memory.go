package kv

import (
	"context"
	"sync"

	"github.com/sawpanic/viralrisk/internal/persistence"
)

// MemoryStore is an in-process KeyValueStore for tests and single-node runs
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
	lists  map[string][]string
}

var _ persistence.KeyValueStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string][]byte),
		lists:  make(map[string][]string),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.mu.Lock()
	m.values[key] = stored
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ListAppend(_ context.Context, key string, value string) error {
	m.mu.Lock()
	m.lists[key] = append(m.lists[key], value)
	m.mu.Unlock()
	return nil
}

// ListRange follows LRANGE index semantics, including negative offsets
// and out-of-range clamping.
func (m *MemoryStore) ListRange(_ context.Context, key string, start, end int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.lists[key]
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if start < 0 {
		start = 0
	}
	if end >= n {
		end = n - 1
	}
	if n == 0 || start > end || start >= n {
		return []string{}, nil
	}

	out := make([]string, end-start+1)
	copy(out, list[start:end+1])
	return out, nil
}
