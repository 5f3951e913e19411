package presence

import (
	"sync"
	"time"
)

// Conn is the live-connection handle held by the registry. The realtime
// package's websocket client satisfies it; tests use lightweight fakes.
type Conn interface {
	// Send enqueues a payload without blocking. It reports false when the
	// connection's buffer is full or closed, in which case the caller may
	// treat the connection as dead.
	Send(payload []byte) bool
	// Close tears down the connection.
	Close()
}

// Registry tracks which users currently hold a live connection. It is a
// best-effort live-delivery hint, never a source of truth: state is lost
// on restart by design, and reconnecting clients simply re-register.
type Registry interface {
	Register(userID uint, conn Conn)
	Lookup(userID uint) (Conn, bool)
	Unregister(userID uint, conn Conn)
}

type memoryRegistry struct {
	mu    sync.RWMutex
	conns map[uint]Conn
}

// NewMemoryRegistry creates an in-process Registry. When the server is
// scaled to multiple processes each instance sees only its own
// connections, which is acceptable: live delivery is per-instance
// best-effort and durable push covers the rest.
func NewMemoryRegistry() Registry {
	return &memoryRegistry{conns: make(map[uint]Conn)}
}

// Register records the connection for the user. A prior connection for
// the same user is superseded and closed: at most one live handle per
// identity at a time.
func (r *memoryRegistry) Register(userID uint, conn Conn) {
	r.mu.Lock()
	old, existed := r.conns[userID]
	r.conns[userID] = conn
	r.mu.Unlock()

	if existed && old != conn {
		old.Close()
	}
}

// Lookup returns the live connection for the user, if any.
func (r *memoryRegistry) Lookup(userID uint) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// Unregister removes the mapping. It is an idempotent no-op when the
// user is absent, and it leaves the entry alone when it already points
// at a newer connection (reconnect race).
func (r *memoryRegistry) Unregister(userID uint, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.conns[userID]; ok && (conn == nil || current == conn) {
		delete(r.conns, userID)
	}
}

// IsOnline is the single derived-presence predicate: a user counts as
// online when their last-seen timestamp is within the threshold. Every
// place that surfaces presence-derived state uses this, nothing stores it.
func IsOnline(lastSeen *time.Time, threshold time.Duration) bool {
	if lastSeen == nil {
		return false
	}
	return time.Since(*lastSeen) <= threshold
}
