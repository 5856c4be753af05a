package ws

import (
	"sync"

	apperrors "github.com/89hikari/telegram-clone-backend/pkg/errors"
)

// Registry is the in-memory bidirectional index of live connections and the
// user identities bound to them. A connection maps to at most one user; a
// user maps to any number of connections (multi-device). All operations are
// synchronous in-memory mutations, safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*Client
	bindings map[string]int64
	users    map[int64]map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{
		conns:    make(map[string]*Client),
		bindings: make(map[string]int64),
		users:    make(map[int64]map[string]*Client),
	}
}

// Register adds an unauthenticated connection. A duplicate id is an
// invariant violation: the transport guarantees unique connection ids, so
// this indicates a bookkeeping bug.
func (r *Registry) Register(c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[c.ID]; exists {
		return apperrors.Internal("duplicate connection id: " + c.ID)
	}
	r.conns[c.ID] = c
	return nil
}

// Bind attaches a verified identity to a registered connection. Rebinding
// the same identity is a no-op; rebinding a different one is rejected. The
// bool reports whether a fresh binding was created, so callers can tell a
// first handshake from a repeated one.
func (r *Registry) Bind(connID string, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return false, apperrors.Unauthenticated("connection is not registered")
	}

	if bound, ok := r.bindings[connID]; ok {
		if bound != userID {
			return false, apperrors.IdentityConflict("connection is already bound to another user")
		}
		return false, nil
	}

	r.bindings[connID] = userID
	if r.users[userID] == nil {
		r.users[userID] = make(map[string]*Client)
	}
	r.users[userID][connID] = c
	return true, nil
}

// Unregister removes the connection and returns the identity it was bound
// to, if any, so the caller can run disconnect-presence logic.
func (r *Registry) Unregister(connID string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; !ok {
		return 0, false
	}
	delete(r.conns, connID)

	userID, bound := r.bindings[connID]
	if !bound {
		return 0, false
	}
	delete(r.bindings, connID)

	if conns := r.users[userID]; conns != nil {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.users, userID)
		}
	}
	return userID, true
}

// UserOf returns the identity bound to a connection.
func (r *Registry) UserOf(connID string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.bindings[connID]
	return userID, ok
}

// ConnectionsFor returns every live connection bound to a user.
func (r *Registry) ConnectionsFor(userID int64) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.users[userID]
	if len(conns) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// IsOnline reports whether the user has at least one connection on this
// instance.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}
