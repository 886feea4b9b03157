// Package requestlog captures per-request outcomes for user inspection.
// It is distinct from operational logging, which uses log/slog.
package requestlog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Source describes which stage of the pipeline produced the response.
const (
	SourceRelay    = "relay"     // upstream passthrough relayed verbatim
	SourceMock     = "mock"      // local mock resolution
	SourceSSE      = "sse"       // long-lived event-stream registration
	SourceNotFound = "not-found" // neither upstream nor local match
	SourceError    = "error"     // pipeline boundary converted a failure
)

// Entry captures one handled request.
type Entry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Query      string    `json:"query,omitempty"`
	Source     string    `json:"source"`
	EndpointID string    `json:"endpointId,omitempty"`
	Status     int       `json:"status"`
	DurationMs int       `json:"durationMs"`
}

// Logger is the interface the pipeline records entries through.
type Logger interface {
	Log(e *Entry)
}

// MemoryStore is a bounded in-memory ring of request entries.
// The newest entry is first in List.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
	max     int
}

// NewMemoryStore creates a store keeping at most max entries.
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = 1000
	}
	return &MemoryStore{max: max}
}

// Log records an entry, assigning an ID and timestamp when missing.
func (s *MemoryStore) Log(e *Entry) {
	if e == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	if len(s.entries) > s.max {
		s.entries = s.entries[len(s.entries)-s.max:]
	}
}

// List returns all entries, newest first.
func (s *MemoryStore) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, len(s.entries))
	for i, e := range s.entries {
		out[len(s.entries)-1-i] = e
	}
	return out
}

// Get returns an entry by ID, or nil.
func (s *MemoryStore) Get(id string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Count returns the number of stored entries.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all entries.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

var _ Logger = (*MemoryStore)(nil)
