package ws

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRooms_JoinIsIdempotent(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()
	c := newFakeConn("alice")

	req.True(rooms.Join(c, "chat-1"))
	req.False(rooms.Join(c, "chat-1"))

	req.Len(rooms.SubscribersOf("chat-1"), 1)
	req.Equal(1, rooms.Len())
}

func TestRooms_EmptyRoomsDisappear(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()
	a := newFakeConn("alice")
	b := newFakeConn("bob")

	rooms.Join(a, "chat-1")
	rooms.Join(b, "chat-1")
	rooms.Leave(a, "chat-1")
	req.Equal(1, rooms.Len())

	rooms.Leave(b, "chat-1")
	req.Zero(rooms.Len())
	req.Empty(rooms.SubscribersOf("chat-1"))
}

func TestRooms_LeaveAllOnDisconnect(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()
	c := newFakeConn("alice")
	other := newFakeConn("bob")

	rooms.Join(c, "chat-1")
	rooms.Join(c, "chat-2")
	rooms.Join(other, "chat-2")

	left := rooms.LeaveAll(c)

	req.ElementsMatch([]string{"chat-1", "chat-2"}, left)
	req.Empty(rooms.SubscribersOf("chat-1"))
	req.Equal([]Conn{other}, rooms.SubscribersOf("chat-2"))
	req.Empty(rooms.LeaveAll(c))
}

func TestRooms_EvictDropsOnlyThatUser(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()
	phone := newFakeConn("carol")
	laptop := newFakeConn("carol")
	alice := newFakeConn("alice")

	rooms.Join(phone, "group")
	rooms.Join(laptop, "group")
	rooms.Join(alice, "group")
	rooms.Join(phone, "elsewhere")

	req.Equal(2, rooms.Evict("group", "carol"))

	req.Equal([]Conn{alice}, rooms.SubscribersOf("group"))
	req.Equal([]Conn{phone}, rooms.SubscribersOf("elsewhere"))
}

func TestRooms_CloseAndClear(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()
	a := newFakeConn("alice")
	rooms.Join(a, "chat-1")
	rooms.Join(a, "chat-2")

	rooms.Close("chat-1")
	req.Empty(rooms.SubscribersOf("chat-1"))
	req.Equal([]string{"chat-2"}, rooms.LeaveAll(a))

	rooms.Join(a, "chat-3")
	rooms.Clear()
	req.Zero(rooms.Len())
}
