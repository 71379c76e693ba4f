package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chatroom/internal/model"
	"github.com/chatroom/internal/storage/memory"
	"github.com/chatroom/internal/ws"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	id     string
	userID string

	mu     sync.Mutex
	events []ws.OutgoingMessage
}

func (c *recordingConn) ID() string     { return c.id }
func (c *recordingConn) UserID() string { return c.userID }
func (c *recordingConn) Close()         {}

func (c *recordingConn) Send(ev ws.OutgoingMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return true
}

func (c *recordingConn) types() []ws.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ws.EventType, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Type)
	}
	return out
}

func (c *recordingConn) last(t ws.EventType) (ws.OutgoingMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Type == t {
			return c.events[i], true
		}
	}
	return ws.OutgoingMessage{}, false
}

func (c *recordingConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

type removedFiles struct {
	mu   sync.Mutex
	refs []string
}

func (r *removedFiles) RemoveAll(refs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs = append(r.refs, refs...)
}

func (r *removedFiles) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.refs...)
}

type testEnv struct {
	store    *memory.Client
	registry *ws.Registry
	rooms    *ws.Rooms
	files    *removedFiles
	chats    *ChatService
	messages *MessageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	registry := ws.NewRegistry()
	rooms := ws.NewRooms()
	dispatcher := ws.NewDispatcher(registry, rooms)
	files := &removedFiles{}
	t.Cleanup(func() {
		registry.Clear()
		rooms.Clear()
	})
	return &testEnv{
		store:    store,
		registry: registry,
		rooms:    rooms,
		files:    files,
		chats:    NewChatService(store, dispatcher, files, time.Second),
		messages: NewMessageService(store, dispatcher, files, time.Second),
	}
}

func (e *testEnv) user(t *testing.T, name string) string {
	t.Helper()
	u := &model.User{ID: uuid.NewString(), Username: name, Email: name + "@example.com", CreatedAt: time.Now().UTC()}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return u.ID
}

// connect registers a live connection for userID, optionally joined to chat rooms.
func (e *testEnv) connect(userID string, chatIDs ...string) *recordingConn {
	c := &recordingConn{id: uuid.NewString(), userID: userID}
	e.registry.Register(c)
	for _, id := range chatIDs {
		e.rooms.Join(c, id)
	}
	return c
}

func (e *testEnv) group(t *testing.T, admin string, members ...string) *model.ChatView {
	t.Helper()
	view, err := e.chats.CreateGroupChat(context.Background(), admin, "Team", members)
	require.NoError(t, err)
	return view
}
