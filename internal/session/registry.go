package session

import (
	"context"
	"sync"
)

// Registry owns every connected session, the generalized form of the
// gateway's wsClients map: instead of a request-rate sweep it runs a
// watchdog sweep, and instead of broadcasting to subscribers of a
// symbol it routes by session id.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Session)}
}

// Add registers s; if a session with the same ID is already
// registered, s is ignored.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[s.ID]; exists {
		return
	}
	r.byID[s.ID] = s
	r.order = append(r.order, s.ID)
}

// Get returns the session for id, if any.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// IterateAll calls Iterate on each session in insertion order.
func (r *Registry) IterateAll(ctx context.Context) {
	r.mu.RLock()
	ids := append([]string{}, r.order...)
	r.mu.RUnlock()

	for _, id := range ids {
		r.mu.RLock()
		s, ok := r.byID[id]
		r.mu.RUnlock()
		if ok {
			s.Iterate(ctx)
		}
	}
}

// CheckAllWatchdogs fails and closes any session whose watchdog has
// fired, returning the IDs of those sessions.
func (r *Registry) CheckAllWatchdogs() []string {
	r.mu.RLock()
	ids := append([]string{}, r.order...)
	r.mu.RUnlock()

	var fired []string
	for _, id := range ids {
		r.mu.RLock()
		s, ok := r.byID[id]
		r.mu.RUnlock()
		if ok && s.CheckWatchdog() {
			fired = append(fired, id)
		}
	}
	return fired
}

// FreeAllClosed reaps sessions whose closed flag is set, occurring
// after iteration in the per-tick ordering.
func (r *Registry) FreeAllClosed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reaped []string
	kept := r.order[:0]
	for _, id := range r.order {
		s := r.byID[id]
		if s != nil && s.Closed() {
			delete(r.byID, id)
			reaped = append(reaped, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return reaped
}

// CloseAll gracefully closes every session, used on the terminate
// event.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		s.Close()
	}
}

// Len reports the number of sessions currently visible to iteration
// (closed sessions remain visible until FreeAllClosed runs).
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
