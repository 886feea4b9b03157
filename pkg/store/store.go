// Package store defines the mock definition store consumed by the registry
// builder, plus a thread-safe in-memory implementation.
package store

import (
	"context"

	"github.com/mockrelay/mockrelay/pkg/mock"
)

// Filter narrows a ListActiveFiltered call.
type Filter struct {
	// Method matches the endpoint method exactly (empty matches all).
	Method string
	// Path matches the endpoint's configured path exactly (empty matches all).
	Path string
	// Types restricts results to the given mock types (empty matches all).
	Types []mock.Type
}

// Store supplies the set of active mock configurations. Implementations
// must be safe for concurrent use.
type Store interface {
	// ListActive returns all enabled endpoints.
	ListActive(ctx context.Context) ([]*mock.Endpoint, error)

	// ListActiveFiltered returns enabled endpoints matching the filter.
	ListActiveFiltered(ctx context.Context, f Filter) ([]*mock.Endpoint, error)

	// Detach returns a copy of the endpoint with all lazily-held
	// collections materialized, safe to use outside the store.
	Detach(e *mock.Endpoint) *mock.Endpoint
}

func matchesFilter(e *mock.Endpoint, f Filter) bool {
	if f.Method != "" && f.Method != e.Method {
		return false
	}
	if f.Path != "" && f.Path != e.Path {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
