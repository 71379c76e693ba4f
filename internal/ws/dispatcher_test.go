package ws

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDispatcher() (*Registry, *Rooms, *Dispatcher) {
	registry := NewRegistry()
	rooms := NewRooms()
	return registry, rooms, NewDispatcher(registry, rooms)
}

func TestDispatcher_ToUserReachesEveryConnection(t *testing.T) {
	req := require.New(t)
	registry, _, d := newTestDispatcher()
	phone, laptop, other := newFakeConn("alice"), newFakeConn("alice"), newFakeConn("bob")
	registry.Register(phone)
	registry.Register(laptop)
	registry.Register(other)

	n := d.ToUser("alice", OutgoingMessage{Type: EventNewChat})

	req.Equal(2, n)
	req.Equal([]EventType{EventNewChat}, phone.types())
	req.Equal([]EventType{EventNewChat}, laptop.types())
	req.Empty(other.received())
}

func TestDispatcher_ToUserWithoutConnectionsIsNoop(t *testing.T) {
	_, _, d := newTestDispatcher()
	require.Zero(t, d.ToUser("nobody", OutgoingMessage{Type: EventNewChat}))
}

func TestDispatcher_ToUsersDeduplicates(t *testing.T) {
	req := require.New(t)
	registry, _, d := newTestDispatcher()
	c := newFakeConn("alice")
	registry.Register(c)

	d.ToUsers([]string{"alice", "alice"}, OutgoingMessage{Type: EventConnected})

	req.Len(c.received(), 1)
}

func TestDispatcher_ToRoomAppliesFilter(t *testing.T) {
	req := require.New(t)
	_, rooms, d := newTestDispatcher()
	a, b, outsider := newFakeConn("a"), newFakeConn("b"), newFakeConn("c")
	rooms.Join(a, "chat")
	rooms.Join(b, "chat")
	rooms.Join(outsider, "chat")

	// Only participants other than the sender
	n := d.ToRoom("chat", OutgoingMessage{Type: EventMessageReceived}, AmongUsers([]string{"b"}))

	req.Equal(1, n)
	req.Empty(a.received())
	req.Len(b.received(), 1)
	req.Empty(outsider.received())
}

func TestDispatcher_SlowConnectionIsDropped(t *testing.T) {
	req := require.New(t)
	_, rooms, d := newTestDispatcher()
	slow, fast := newFakeConn("slow"), newFakeConn("fast")
	slow.capacity = 1
	rooms.Join(slow, "chat")
	rooms.Join(fast, "chat")

	d.ToRoom("chat", OutgoingMessage{Type: EventTyping}, nil)
	n := d.ToRoom("chat", OutgoingMessage{Type: EventTyping}, nil)

	req.Equal(1, n)
	req.True(slow.isClosed())
	req.Len(fast.received(), 2)
}

func TestDispatcher_EvictAndCloseRoom(t *testing.T) {
	req := require.New(t)
	_, rooms, d := newTestDispatcher()
	a, b := newFakeConn("a"), newFakeConn("b")
	rooms.Join(a, "chat")
	rooms.Join(b, "chat")

	d.Evict("chat", "a")
	req.Equal([]Conn{b}, rooms.SubscribersOf("chat"))

	d.CloseRoom("chat")
	req.Zero(d.ToRoom("chat", OutgoingMessage{Type: EventTyping}, nil))
}
