package cache

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore constructs an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, identity string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[identity]
	return entry, ok, nil
}

// Save implements Store. The previous entry is swapped out in one step.
func (s *MemoryStore) Save(_ context.Context, entry Entry) error {
	s.mu.Lock()
	s.entries[entry.Identity] = entry
	s.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
