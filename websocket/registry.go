package websocket

import (
	"context"
	"sync"
)

// Registry tracks a set of live connections and broadcasts messages to
// all of them, with the register/unregister/broadcast surface of a
// classic WebSocket hub but no event loop of its own: a mutex-guarded
// member set built directly on [Conn]'s channel API: each member gets its own bounded outbox (via [Conn.Send]),
// so one slow peer never stalls delivery to the others.
type Registry struct {
	mu      sync.RWMutex
	members map[*Conn]struct{}
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{members: make(map[*Conn]struct{})}
}

// Register adds conn to the registry. Callers typically defer
// Unregister once they start reading messages from conn.
func (reg *Registry) Register(conn *Conn) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.members[conn] = struct{}{}
}

// Unregister removes conn from the registry. A no-op if conn was never
// registered, or was already removed.
func (reg *Registry) Unregister(conn *Conn) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.members, conn)
}

// Count reports the number of currently registered connections.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.members)
}

// Broadcast sends msg to every registered connection concurrently.
// A connection whose Send fails (a full outbox under ctx's deadline, or
// a connection that has since closed) is unregistered and skipped;
// Broadcast still delivers to every other member.
func (reg *Registry) Broadcast(ctx context.Context, msg Message) {
	reg.mu.RLock()
	targets := make([]*Conn, 0, len(reg.members))
	for c := range reg.members {
		targets = append(targets, c)
	}
	reg.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range targets {
		wg.Add(1)
		go func(c *Conn) {
			defer wg.Done()
			if err := c.Send(ctx, msg); err != nil {
				reg.Unregister(c)
			}
		}(c)
	}
	wg.Wait()
}
