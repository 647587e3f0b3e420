package session

import (
	"sort"
	"sync"
)

// Registry maps stream keys to their live session. Every method is atomic
// with respect to the others.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// TryInsert stores s under its key unless another live session holds it.
// A leftover Stopped entry is replaced.
func (r *Registry) TryInsert(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[s.key]; ok && existing.State().Live() {
		return false
	}
	r.sessions[s.key] = s
	return true
}

// Get returns the session stored under key.
func (r *Registry) Get(key string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[key]
	return s, ok
}

// Remove deletes key unconditionally. Removing an absent key is a no-op.
// The manager cleans up with CompareAndRemove; Remove is for callers that
// evict a key by force.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, key)
}

// CompareAndRemove deletes key only while it still maps to s, so a finished
// session never evicts the one that replaced it.
func (r *Registry) CompareAndRemove(key string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[key] != s {
		return false
	}
	delete(r.sessions, key)
	return true
}

// Snapshot returns the stored sessions ordered by key.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// Len returns the number of stored sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}
