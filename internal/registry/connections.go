package registry

import (
	"sync"

	"github.com/pairline/pairline/internal/protocol"
)

// Conn is the outbound half of a live session. Send must not block; it
// reports false when the message could not be queued (buffer full or
// connection already closed).
type Conn interface {
	Send(msg *protocol.Message) bool
}

// Connections maps session ids to their outbound channels. Pure address
// book; no business logic lives here.
type Connections struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// NewConnections creates an empty connection registry.
func NewConnections() *Connections {
	return &Connections{conns: make(map[string]Conn)}
}

// Register stores the outbound channel for a session.
func (c *Connections) Register(id string, conn Conn) {
	c.mu.Lock()
	c.conns[id] = conn
	c.mu.Unlock()
}

// Lookup returns the outbound channel for a session, if still live.
func (c *Connections) Lookup(id string) (Conn, bool) {
	c.mu.RLock()
	conn, ok := c.conns[id]
	c.mu.RUnlock()
	return conn, ok
}

// Remove drops the session's outbound channel.
func (c *Connections) Remove(id string) {
	c.mu.Lock()
	delete(c.conns, id)
	c.mu.Unlock()
}

// Count returns the number of live sessions.
func (c *Connections) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.conns)
}
