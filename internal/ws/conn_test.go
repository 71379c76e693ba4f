package ws

import (
	"sync"

	"github.com/google/uuid"
)

// fakeConn records what the dispatcher queued for it.
type fakeConn struct {
	id     string
	userID string

	mu       sync.Mutex
	events   []OutgoingMessage
	closed   bool
	capacity int
}

func newFakeConn(userID string) *fakeConn {
	return &fakeConn{id: uuid.NewString(), userID: userID, capacity: -1}
}

func (f *fakeConn) ID() string     { return f.id }
func (f *fakeConn) UserID() string { return f.userID }

func (f *fakeConn) Send(ev OutgoingMessage) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	if f.capacity >= 0 && len(f.events) >= f.capacity {
		f.closed = true
		return false
	}
	f.events = append(f.events, ev)
	return true
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) received() []OutgoingMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]OutgoingMessage(nil), f.events...)
}

func (f *fakeConn) types() []EventType {
	var out []EventType
	for _, ev := range f.received() {
		out = append(out, ev.Type)
	}
	return out
}
