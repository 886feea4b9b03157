package engine

import "sync"

// State publishes the engine's running flag and bound port to
// collaborators that need them mid-request, such as the upstream
// client's local-fallback retry. It is injected, never global.
type State struct {
	mu      sync.RWMutex
	running bool
	port    int
}

// NewState returns a stopped State.
func NewState() *State {
	return &State{}
}

// Set records the running flag and bound port together.
func (s *State) Set(running bool, port int) {
	s.mu.Lock()
	s.running = running
	s.port = port
	s.mu.Unlock()
}

// Snapshot returns the running flag and port as one consistent read.
func (s *State) Snapshot() (running bool, port int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running, s.port
}

// Running reports whether the engine is serving.
func (s *State) Running() bool {
	r, _ := s.Snapshot()
	return r
}

// Port returns the bound port, zero when stopped.
func (s *State) Port() int {
	_, p := s.Snapshot()
	return p
}
