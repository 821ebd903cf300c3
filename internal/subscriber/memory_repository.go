package subscriber

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing.
type InMemoryRepository struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewInMemoryRepository creates a new in-memory subscriber repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		ids: make(map[string]struct{}),
	}
}

// Add registers a subscriber ID.
func (r *InMemoryRepository) Add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[id] = struct{}{}
}

// Exists reports whether a subscriber with the given ID exists.
func (r *InMemoryRepository) Exists(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.ids[id]
	return ok, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
