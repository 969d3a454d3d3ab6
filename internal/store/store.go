package store

import "sync"

// Store guards a State for concurrent handlers of one session
type Store struct {
	mu    sync.RWMutex
	state State
}

// New returns a store holding initial
func New(initial State) *Store {
	return &Store{state: initial}
}

// Dispatch applies actions in order and returns the resulting state
func (s *Store) Dispatch(actions ...Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range actions {
		s.state = Reduce(s.state, a)
	}
	return s.state
}

// Snapshot returns the current state
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}
