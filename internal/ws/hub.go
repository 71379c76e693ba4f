package ws

import (
	"context"
	"strings"
	"time"

	"github.com/chatroom/internal/logger"
	"github.com/chatroom/internal/metrics"
)

// PeerLister returns identities sharing at least one chat with userID.
type PeerLister interface {
	ChatPeers(ctx context.Context, userID string) ([]string, error)
}

type HubOptions struct {
	MaxConns int
	// Peers enables connected/disconnected presence events. nil disables them.
	Peers       PeerLister
	PeerTimeout time.Duration
}

// Hub owns the registry and the room index. Run serializes connection
// registration; delivery goes through the Dispatcher from any goroutine.
type Hub struct {
	registry    *Registry
	rooms       *Rooms
	dispatcher  *Dispatcher
	typing      *Typing
	maxConns    int
	peers       PeerLister
	peerTimeout time.Duration
	register    chan Conn
	unregister  chan Conn
	// stopping is closed first thing in shutdown; after it Register and
	// Unregister no longer wait on Run.
	stopping chan struct{}
	done     chan struct{}
}

func NewHub(opts HubOptions) *Hub {
	if opts.MaxConns <= 0 {
		opts.MaxConns = 10000
	}
	if opts.PeerTimeout <= 0 {
		opts.PeerTimeout = 5 * time.Second
	}
	registry := NewRegistry()
	rooms := NewRooms()
	dispatcher := NewDispatcher(registry, rooms)
	return &Hub{
		registry:    registry,
		rooms:       rooms,
		dispatcher:  dispatcher,
		typing:      NewTyping(dispatcher),
		maxConns:    opts.MaxConns,
		peers:       opts.Peers,
		peerTimeout: opts.PeerTimeout,
		register:    make(chan Conn, 64),
		unregister:  make(chan Conn, 64),
		stopping:    make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (h *Hub) Dispatcher() *Dispatcher { return h.dispatcher }
func (h *Hub) Registry() *Registry     { return h.registry }
func (h *Hub) Rooms() *Rooms           { return h.rooms }

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) shutdown() {
	close(h.stopping)
	// Queued registrations never reach the registry now.
	go func() {
		for {
			select {
			case c := <-h.register:
				c.Close()
			case <-h.done:
				return
			}
		}
	}()

	all := h.registry.Clear()
	h.rooms.Clear()
	metrics.Connections.Sub(float64(len(all)))

	// Network I/O outside any lock.
	for _, c := range all {
		c.Close()
	}
	for _, c := range all {
		if w, ok := c.(interface{ Wait() }); ok {
			w.Wait()
		}
	}
	logger.Infof("ws hub stopped, closed %d connections", len(all))
}

func (h *Hub) addClient(c Conn) {
	if h.registry.Len() >= h.maxConns {
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.UserID())
		metrics.RejectedConnections.Inc()
		c.Close()
		return
	}
	// A client that died before reaching the hub cannot take the ack.
	ack := OutgoingMessage{Type: EventConnected, Payload: ConnectedPayload{UserID: c.UserID(), ConnectionID: c.ID()}}
	if !h.dispatcher.ToConn(c, ack) {
		return
	}
	first := h.registry.Register(c)
	metrics.Connections.Inc()
	logger.Debugf("ws registered user=%s conn=%s first=%v", c.UserID(), c.ID(), first)
	if first {
		h.broadcastPresence(c.UserID(), EventConnected)
	}
}

func (h *Hub) removeClient(c Conn) {
	removed, last := h.registry.Unregister(c)
	h.rooms.LeaveAll(c)
	c.Close()
	if !removed {
		return
	}
	metrics.Connections.Dec()
	if last {
		h.broadcastPresence(c.UserID(), EventDisconnected)
	}
}

func (h *Hub) broadcastPresence(userID string, kind EventType) {
	if h.peers == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.peerTimeout)
	defer cancel()
	peers, err := h.peers.ChatPeers(ctx, userID)
	if err != nil {
		logger.Errorf("ws presence peers user=%s: %v", userID, err)
		return
	}
	h.dispatcher.ToUsers(peers, OutgoingMessage{Type: kind, Payload: ConnectedPayload{UserID: userID}})
}

// HandleMessage processes one inbound frame from c.
func (h *Hub) HandleMessage(c Conn, msg IncomingMessage) {
	chatID := strings.TrimSpace(msg.ChatID)
	switch msg.Type {
	case InboundJoinChat, InboundLeaveRoom, EventTyping, EventStopTyping:
		if chatID == "" {
			h.dispatcher.ToConn(c, socketError("chat_id required"))
			return
		}
	default:
		h.dispatcher.ToConn(c, socketError("unknown event type"))
		return
	}

	switch msg.Type {
	case InboundJoinChat:
		h.rooms.Join(c, chatID)
		h.dispatcher.ToConn(c, OutgoingMessage{Type: EventJoinChat, Payload: RoomPayload{ChatID: chatID}})
	case InboundLeaveRoom:
		h.rooms.Leave(c, chatID)
	case EventTyping:
		h.typing.NotifyTyping(c, chatID)
	case EventStopTyping:
		h.typing.NotifyStopTyping(c, chatID)
	}
}

func (h *Hub) Register(c Conn) {
	select {
	case <-h.stopping:
		c.Close()
		return
	default:
	}
	select {
	case h.register <- c:
	case <-h.stopping:
		c.Close()
	}
}

// Unregister never blocks once shutdown starts, so client pumps can exit
// while shutdown waits for them.
func (h *Hub) Unregister(c Conn) {
	select {
	case h.unregister <- c:
	case <-h.stopping:
	}
}
