package ws

import (
	"sync"

	"github.com/chatroom/internal/metrics"
)

// Rooms tracks which connections are subscribed to which chat.
// Subscription is advisory: delivery still filters on chat participants.
type Rooms struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Conn
	joined map[string]map[string]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		rooms:  make(map[string]map[string]Conn),
		joined: make(map[string]map[string]struct{}),
	}
}

// Join is idempotent; it reports whether c was newly added.
func (r *Rooms) Join(c Conn, chatID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[chatID]
	if !ok {
		room = make(map[string]Conn)
		r.rooms[chatID] = room
		metrics.Rooms.Inc()
	}
	if _, ok := room[c.ID()]; ok {
		return false
	}
	room[c.ID()] = c
	chats, ok := r.joined[c.ID()]
	if !ok {
		chats = make(map[string]struct{})
		r.joined[c.ID()] = chats
	}
	chats[chatID] = struct{}{}
	return true
}

func (r *Rooms) Leave(c Conn, chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(c.ID(), chatID)
}

// LeaveAll drops c from every room and returns the chats it was in.
func (r *Rooms) LeaveAll(c Conn) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	chats := r.joined[c.ID()]
	out := make([]string, 0, len(chats))
	for chatID := range chats {
		out = append(out, chatID)
		r.leaveLocked(c.ID(), chatID)
	}
	return out
}

func (r *Rooms) leaveLocked(connID, chatID string) {
	if room, ok := r.rooms[chatID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(r.rooms, chatID)
			metrics.Rooms.Dec()
		}
	}
	if chats, ok := r.joined[connID]; ok {
		delete(chats, chatID)
		if len(chats) == 0 {
			delete(r.joined, connID)
		}
	}
}

func (r *Rooms) SubscribersOf(chatID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[chatID]
	out := make([]Conn, 0, len(room))
	for _, c := range room {
		out = append(out, c)
	}
	return out
}

// Evict drops every connection of userID from the room and returns how many were dropped.
func (r *Rooms) Evict(chatID, userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for connID, c := range r.rooms[chatID] {
		if c.UserID() == userID {
			r.leaveLocked(connID, chatID)
			n++
		}
	}
	return n
}

// Close drops the room and all its subscriptions.
func (r *Rooms) Close(chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for connID := range r.rooms[chatID] {
		r.leaveLocked(connID, chatID)
	}
}

func (r *Rooms) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Rooms) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	metrics.Rooms.Sub(float64(len(r.rooms)))
	r.rooms = make(map[string]map[string]Conn)
	r.joined = make(map[string]map[string]struct{})
}
