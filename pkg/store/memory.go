package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mockrelay/mockrelay/pkg/mock"
)

// Memory is a thread-safe in-memory Store.
type Memory struct {
	mu        sync.RWMutex
	endpoints map[string]*mock.Endpoint
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{endpoints: make(map[string]*mock.Endpoint)}
}

// NewMemoryWith creates an in-memory store pre-loaded with endpoints.
func NewMemoryWith(endpoints ...*mock.Endpoint) *Memory {
	s := NewMemory()
	for _, e := range endpoints {
		if e != nil {
			s.Put(e)
		}
	}
	return s
}

// Put stores or replaces an endpoint.
func (s *Memory) Put(e *mock.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints[e.ID] = e
}

// Delete removes an endpoint by ID. Returns true if it existed.
func (s *Memory) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.endpoints[id]; ok {
		delete(s.endpoints, id)
		return true
	}
	return false
}

// Get returns an endpoint by ID, or nil.
func (s *Memory) Get(id string) *mock.Endpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endpoints[id]
}

// Count returns the number of stored endpoints.
func (s *Memory) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.endpoints)
}

// ListActive returns all enabled endpoints, ordered by ID for stable
// registry builds.
func (s *Memory) ListActive(ctx context.Context) ([]*mock.Endpoint, error) {
	return s.ListActiveFiltered(ctx, Filter{})
}

// ListActiveFiltered returns enabled endpoints matching the filter.
func (s *Memory) ListActiveFiltered(_ context.Context, f Filter) ([]*mock.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*mock.Endpoint
	for _, e := range s.endpoints {
		if e.IsEnabled() && matchesFilter(e, f) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Detach deep-copies the endpoint so it is usable outside the store.
func (s *Memory) Detach(e *mock.Endpoint) *mock.Endpoint {
	return e.Detach()
}

var _ Store = (*Memory)(nil)
