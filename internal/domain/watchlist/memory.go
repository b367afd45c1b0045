package watchlist

import (
	"context"
	"slices"
	"sync"
)

type memoryStore struct {
	mu   sync.RWMutex
	list []string
}

// NewMemory returns a process-local store, useful for tests and one-shot
// CLI runs.
func NewMemory(initial ...string) Store {
	return &memoryStore{list: dedupe(initial)}
}

func (s *memoryStore) List(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.list), nil
}

func (s *memoryStore) Contains(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.list, id), nil
}

func (s *memoryStore) Toggle(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var watching bool
	s.list, watching = toggle(s.list, id)
	return watching, nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}
