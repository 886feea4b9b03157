package resolver

import (
	"context"
	"sync"

	"github.com/mockrelay/mockrelay/pkg/mock"
)

// Sequence rotates through an endpoint's response variants, one per
// request, wrapping back to the first after the last. Cursors survive
// variant pruning: the next index is taken modulo whatever variants
// remain.
type Sequence struct {
	mu      sync.Mutex
	cursors map[string]int
}

// NewSequence returns a Sequence resolver with fresh cursors.
func NewSequence() *Sequence {
	return &Sequence{cursors: make(map[string]int)}
}

// Resolve returns the next variant in the rotation, or (nil, nil) when
// no variants remain.
func (s *Sequence) Resolve(_ context.Context, _ *Request, ep *mock.Endpoint) (*mock.Resolved, error) {
	if ep.Sequence == nil || len(ep.Sequence.Variants) == 0 {
		return nil, nil
	}
	variants := ep.Sequence.Variants

	s.mu.Lock()
	idx := s.cursors[ep.ID] % len(variants)
	s.cursors[ep.ID] = idx + 1
	s.mu.Unlock()

	v := variants[idx]
	return &mock.Resolved{
		StatusCode:  v.StatusCode,
		ContentType: v.ContentType,
		Body:        v.Body,
		Headers:     v.Headers,
	}, nil
}

// ResetCursor rewinds the rotation for one endpoint, used when the
// registry is rebuilt.
func (s *Sequence) ResetCursor(endpointID string) {
	s.mu.Lock()
	delete(s.cursors, endpointID)
	s.mu.Unlock()
}
