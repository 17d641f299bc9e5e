// Package presence tracks which users currently hold an open
// connection. It is the single source of truth for online/offline and
// is consulted at delivery time, never cached across suspensions.
package presence

import "sync"

// Registry maps a user id to the id of their live connection. A user
// holds at most one entry; a second Connect overwrites it, so the most
// recently opened connection receives targeted sends. Disconnect is
// idempotent and only removes the entry if it still belongs to the
// given connection, so a stale disconnect from an overwritten
// connection cannot knock a newer one offline.
type Registry interface {
	Connect(userID, connID string)
	Disconnect(userID, connID string)
	Handle(userID string) (connID string, ok bool)
	IsOnline(userID string) bool
	Snapshot() []string
}

// MemoryRegistry is the in-process Registry used when no Redis backend
// is configured.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: make(map[string]string)}
}

// Connect implements Registry.
func (r *MemoryRegistry) Connect(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[userID] = connID
}

// Disconnect implements Registry.
func (r *MemoryRegistry) Disconnect(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[userID] == connID {
		delete(r.entries, userID)
	}
}

// Handle implements Registry.
func (r *MemoryRegistry) Handle(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.entries[userID]
	return connID, ok
}

// IsOnline implements Registry.
func (r *MemoryRegistry) IsOnline(userID string) bool {
	_, ok := r.Handle(userID)
	return ok
}

// Snapshot implements Registry.
func (r *MemoryRegistry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.entries))
	for userID := range r.entries {
		users = append(users, userID)
	}
	return users
}
