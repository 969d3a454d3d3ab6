package wizard

import (
	"sync"
	"time"
)

// Registry holds live wizards per session
type Registry struct {
	mu      sync.Mutex
	entries map[string]map[string]*entry
	ttl     time.Duration
}

type entry struct {
	wizard   *Wizard
	lastUsed time.Time
}

// NewRegistry returns a registry that forgets wizards idle for longer than ttl.
// A zero ttl keeps them until removed.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		entries: make(map[string]map[string]*entry),
		ttl:     ttl,
	}
}

// Put stores w under its key for session
func (r *Registry) Put(session string, w *Wizard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wizards, ok := r.entries[session]
	if !ok {
		wizards = make(map[string]*entry)
		r.entries[session] = wizards
	}
	wizards[w.Key()] = &entry{wizard: w, lastUsed: time.Now()}
}

// Get returns the wizard with key in session
func (r *Registry) Get(session, key string) (*Wizard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[session][key]
	if !ok {
		return nil, false
	}
	if r.ttl > 0 && time.Since(e.lastUsed) > r.ttl {
		delete(r.entries[session], key)
		return nil, false
	}
	e.lastUsed = time.Now()
	return e.wizard, true
}

// Remove discards the wizard with key in session
func (r *Registry) Remove(session, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries[session], key)
	if len(r.entries[session]) == 0 {
		delete(r.entries, session)
	}
}

// RemoveSession discards every wizard of session
func (r *Registry) RemoveSession(session string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, session)
}

// Sweep drops idle wizards and returns how many were removed
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for session, wizards := range r.entries {
		for key, e := range wizards {
			if time.Since(e.lastUsed) > r.ttl {
				delete(wizards, key)
				removed++
			}
		}
		if len(wizards) == 0 {
			delete(r.entries, session)
		}
	}
	return removed
}

// Len returns the number of live wizards
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, wizards := range r.entries {
		n += len(wizards)
	}
	return n
}
