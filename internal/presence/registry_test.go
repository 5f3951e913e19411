package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConn struct {
	mu     sync.Mutex
	closed bool
}

func (c *stubConn) Send([]byte) bool { return true }

func (c *stubConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *stubConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewMemoryRegistry()

	_, ok := r.Lookup(1)
	assert.False(t, ok)

	conn := &stubConn{}
	r.Register(1, conn)

	got, ok := r.Lookup(1)
	require.True(t, ok)
	assert.Same(t, conn, got.(*stubConn))
}

func TestRegisterSupersedesOldConnection(t *testing.T) {
	r := NewMemoryRegistry()

	first := &stubConn{}
	second := &stubConn{}
	r.Register(1, first)
	r.Register(1, second)

	assert.True(t, first.isClosed(), "superseded connection must be closed")
	assert.False(t, second.isClosed())

	got, ok := r.Lookup(1)
	require.True(t, ok)
	assert.Same(t, second, got.(*stubConn))
}

func TestUnregisterIgnoresStaleConnection(t *testing.T) {
	r := NewMemoryRegistry()

	old := &stubConn{}
	current := &stubConn{}
	r.Register(1, old)
	r.Register(1, current)

	// A late disconnect callback from the superseded connection must not
	// evict the live one.
	r.Unregister(1, old)
	_, ok := r.Lookup(1)
	assert.True(t, ok)

	r.Unregister(1, current)
	_, ok = r.Lookup(1)
	assert.False(t, ok)

	// Idempotent.
	r.Unregister(1, current)
	r.Unregister(42, nil)
}

func TestIsOnline(t *testing.T) {
	threshold := 10 * time.Minute

	assert.False(t, IsOnline(nil, threshold))

	recent := time.Now().Add(-time.Minute)
	assert.True(t, IsOnline(&recent, threshold))

	stale := time.Now().Add(-time.Hour)
	assert.False(t, IsOnline(&stale, threshold))
}
