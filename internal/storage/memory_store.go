package storage

import (
	"context"
	"sync"
)

// MemoryStore is a process-local EntryStore. It satisfies LocalStore with a
// no-op lifecycle and is used by vaultd's memory backend.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (m *MemoryStore) Open(context.Context) error { return nil }
func (m *MemoryStore) Close() error               { return nil }

func (m *MemoryStore) Get(_ context.Context, id string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	env, ok := m.entries[id]
	if !ok {
		return "", ErrNotFound
	}
	return env, nil
}

func (m *MemoryStore) Put(_ context.Context, id, envelope string) error {
	if err := checkID(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = envelope
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
