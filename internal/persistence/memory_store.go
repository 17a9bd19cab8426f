package persistence

import (
	"context"
	"sync"

	"github.com/petrijr/stepgraph/pkg/api"
)

// InMemoryStore is a simple, goroutine-safe ThreadStore backed by a map.
// States are copied on the way in and out, so callers never share maps
// with the store.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*api.ThreadState
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		threads: make(map[string]*api.ThreadState),
	}
}

// Ensure InMemoryStore implements the interface.
var _ ThreadStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) Load(ctx context.Context, threadID string) (*api.ThreadState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.threads[threadID]
	if !ok {
		return nil, nil
	}
	c := state.Clone()
	if c.Values == nil {
		c.Values = map[string]any{}
	}
	return c, nil
}

func (s *InMemoryStore) Save(ctx context.Context, state *api.ThreadState) error {
	if err := checkState(state); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.threads[state.ThreadID] = state.Clone()
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.threads, threadID)
	return nil
}

// Len returns the number of stored threads.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}
