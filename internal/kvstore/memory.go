package kvstore

import (
	"bytes"
	"context"
	"slices"
	"sync"
)

// Memory is an in-process Store. Nothing survives a restart; it backs tests
// and the "memory" backend.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// Scan visits keys in lexical order. fn must not call back into m.
func (m *Memory) Scan(_ context.Context, prefix []byte, fn func(key, value []byte) error) error {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	snapshot := make([][]byte, len(keys))
	for i, k := range keys {
		snapshot[i] = bytes.Clone(m.data[k])
	}
	m.mu.RUnlock()

	for i, k := range keys {
		if err := fn([]byte(k), snapshot[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Apply(_ context.Context, ops []Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		if op.Delete {
			delete(m.data, string(op.Key))
			continue
		}
		m.data[string(op.Key)] = bytes.Clone(op.Value)
	}
	return nil
}

func (m *Memory) Close() error { return nil }
