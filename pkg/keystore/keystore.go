package keystore

import (
	"context"
	"sync"
)

// Store is the read surface the receipt verifier depends on. GetItem returns
// ErrItemNotFound when the key has never been provisioned.
type Store interface {
	GetItem(ctx context.Context, key string) (string, error)
}

// Memory is a thread-safe in-memory Store, intended for tests and for
// provisioning flows that seed key material before handing it to a verifier.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

func (m *Memory) GetItem(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.items[key]
	if !ok {
		return "", ErrItemNotFound
	}
	return value, nil
}

func (m *Memory) SetItem(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = value
	return nil
}

func (m *Memory) DeleteItem(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}
