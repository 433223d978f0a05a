// Package unlocks persists the set of purchased style ids per session owner.
package unlocks

import (
	"context"
	"sync"
)

// MemoryStore keeps unlock sets in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	sets map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sets: make(map[string][]string)}
}

func (m *MemoryStore) Load(ctx context.Context, owner string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.sets[owner]...), nil
}

func (m *MemoryStore) Save(ctx context.Context, owner string, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[owner] = normalize(ids)
	return nil
}
