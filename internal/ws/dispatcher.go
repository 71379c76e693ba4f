package ws

import (
	"github.com/chatroom/internal/logger"
	"github.com/chatroom/internal/metrics"
)

// Filter decides whether a room subscriber receives an event. nil accepts everyone.
type Filter func(c Conn) bool

// Dispatcher delivers events at most once to whatever connections are live at call time.
type Dispatcher struct {
	registry *Registry
	rooms    *Rooms
}

func NewDispatcher(registry *Registry, rooms *Rooms) *Dispatcher {
	return &Dispatcher{registry: registry, rooms: rooms}
}

// ToUser sends ev to every connection of userID and returns how many accepted it.
func (d *Dispatcher) ToUser(userID string, ev OutgoingMessage) int {
	n := 0
	for _, c := range d.registry.ConnectionsFor(userID) {
		if d.deliver(c, ev) {
			n++
		}
	}
	return n
}

// ToUsers sends ev to each identity once, even if listed twice.
func (d *Dispatcher) ToUsers(userIDs []string, ev OutgoingMessage) int {
	seen := make(map[string]struct{}, len(userIDs))
	n := 0
	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		n += d.ToUser(id, ev)
	}
	return n
}

// ToRoom sends ev to the room's subscribers accepted by filter.
func (d *Dispatcher) ToRoom(chatID string, ev OutgoingMessage, filter Filter) int {
	n := 0
	for _, c := range d.rooms.SubscribersOf(chatID) {
		if filter != nil && !filter(c) {
			continue
		}
		if d.deliver(c, ev) {
			n++
		}
	}
	return n
}

func (d *Dispatcher) ToConn(c Conn, ev OutgoingMessage) bool {
	return d.deliver(c, ev)
}

// Evict removes the listed identities' connections from the room.
func (d *Dispatcher) Evict(chatID string, userIDs ...string) {
	for _, id := range userIDs {
		if n := d.rooms.Evict(chatID, id); n > 0 {
			logger.Debugf("ws evicted user=%s from chat=%s (%d conns)", id, chatID, n)
		}
	}
}

func (d *Dispatcher) CloseRoom(chatID string) {
	d.rooms.Close(chatID)
}

func (d *Dispatcher) deliver(c Conn, ev OutgoingMessage) bool {
	ok := c.Send(ev)
	metrics.RecordDelivery(string(ev.Type), ok)
	return ok
}

// ExcludeConn rejects a single connection.
func ExcludeConn(connID string) Filter {
	return func(c Conn) bool { return c.ID() != connID }
}

// AmongUsers accepts only connections owned by the listed identities.
func AmongUsers(userIDs []string) Filter {
	set := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		set[id] = struct{}{}
	}
	return func(c Conn) bool {
		_, ok := set[c.UserID()]
		return ok
	}
}
