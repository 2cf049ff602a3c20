// Package coordauth is the trusted-channel command authorization
// bookkeeping for COORD_CMD packets: which coordinator session IDs are
// permitted to issue mode/target/limit changes, and the commands issued
// but not yet acknowledged (an acknowledged command is dropped from the
// registry). Grounded on internal/auth.Service's
// shape (a registry plus an audit-relevant record type) with every
// credential/crypto concern stripped — the wire channel here is
// assumed already trusted, per the interlock's non-goal on
// cryptographic session authentication.
package coordauth

import (
	"errors"
	"sync"
	"time"
)

// ErrNotAuthorized is returned when a session ID not on the allow list
// attempts to issue a command.
var ErrNotAuthorized = errors.New("coordauth: session not authorized")

// Command is one issued COORD_CMD, kept for audit until acknowledged.
type Command struct {
	ID        string
	SessionID string
	Kind      string
	TargetID  string
	IssuedAt  time.Time
	AckedAt   time.Time
}

// Registry tracks which session IDs may issue coordinator commands and
// the in-flight commands awaiting acknowledgment.
type Registry struct {
	mu        sync.Mutex
	allowed   map[string]bool
	pending   map[string]*Command
	nextID    int64
}

// NewRegistry constructs a Registry seeded with the given authorized
// session IDs (typically loaded from static configuration).
func NewRegistry(allowedSessionIDs []string) *Registry {
	r := &Registry{
		allowed: make(map[string]bool, len(allowedSessionIDs)),
		pending: make(map[string]*Command),
	}
	for _, id := range allowedSessionIDs {
		r.allowed[id] = true
	}
	return r
}

// Authorize adds sessionID to the allow list.
func (r *Registry) Authorize(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allowed[sessionID] = true
}

// Revoke removes sessionID from the allow list.
func (r *Registry) Revoke(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.allowed, sessionID)
}

// IsAuthorized reports whether sessionID may issue commands.
func (r *Registry) IsAuthorized(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allowed[sessionID]
}

// Issue records a new command from sessionID, rejecting it with
// ErrNotAuthorized if the session is not on the allow list.
func (r *Registry) Issue(sessionID, kind, targetID string) (*Command, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.allowed[sessionID] {
		return nil, ErrNotAuthorized
	}
	r.nextID++
	cmd := &Command{
		ID:        formatID(r.nextID),
		SessionID: sessionID,
		Kind:      kind,
		TargetID:  targetID,
		IssuedAt:  time.Now(),
	}
	r.pending[cmd.ID] = cmd
	return cmd, nil
}

// Ack marks a previously issued command acknowledged, returning false
// if the ID is unknown or already acknowledged.
func (r *Registry) Ack(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmd, ok := r.pending[id]
	if !ok || !cmd.AckedAt.IsZero() {
		return false
	}
	cmd.AckedAt = time.Now()
	delete(r.pending, id)
	return true
}

// PendingCount reports the number of commands issued but not yet
// acknowledged, an operator-facing liveness signal.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func formatID(n int64) string {
	const digits = "0123456789"
	if n == 0 {
		return "cmd-0"
	}
	buf := make([]byte, 0, 20)
	for n > 0 {
		buf = append([]byte{digits[n%10]}, buf...)
		n /= 10
	}
	return "cmd-" + string(buf)
}
