package ws

import "sync"

// Conn is one live client connection as seen by the registry, rooms and dispatcher.
type Conn interface {
	ID() string
	UserID() string
	// Send queues ev without blocking; false means the event was not queued.
	Send(ev OutgoingMessage) bool
	Close()
}

// Registry maps identities to their live connections.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]Conn
	total  int
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]map[string]Conn)}
}

// Register binds c to its identity and reports whether it is the identity's first live connection.
func (r *Registry) Register(c Conn) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns, ok := r.byUser[c.UserID()]
	if !ok {
		conns = make(map[string]Conn)
		r.byUser[c.UserID()] = conns
	}
	if _, dup := conns[c.ID()]; dup {
		return false
	}
	conns[c.ID()] = c
	r.total++
	return len(conns) == 1
}

// Unregister removes c. removed is false when c was not registered;
// last reports whether the identity has no connections left.
func (r *Registry) Unregister(c Conn) (removed, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns, ok := r.byUser[c.UserID()]
	if !ok {
		return false, false
	}
	if _, ok := conns[c.ID()]; !ok {
		return false, false
	}
	delete(conns, c.ID())
	r.total--
	if len(conns) == 0 {
		delete(r.byUser, c.UserID())
		return true, true
	}
	return true, false
}

func (r *Registry) ConnectionsFor(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.byUser[userID]
	out := make([]Conn, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// Clear drops every binding and returns the connections that were registered.
func (r *Registry) Clear() []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Conn, 0, r.total)
	for _, conns := range r.byUser {
		for _, c := range conns {
			out = append(out, c)
		}
	}
	r.byUser = make(map[string]map[string]Conn)
	r.total = 0
	return out
}
