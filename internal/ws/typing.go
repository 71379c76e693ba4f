package ws

// Typing relays typing indicators to a room. It keeps no state: the client
// sends stopTyping itself after an idle window.
type Typing struct {
	dispatcher *Dispatcher
}

func NewTyping(d *Dispatcher) *Typing {
	return &Typing{dispatcher: d}
}

func (t *Typing) NotifyTyping(c Conn, chatID string) int {
	return t.relay(c, chatID, EventTyping)
}

func (t *Typing) NotifyStopTyping(c Conn, chatID string) int {
	return t.relay(c, chatID, EventStopTyping)
}

func (t *Typing) relay(c Conn, chatID string, kind EventType) int {
	ev := OutgoingMessage{Type: kind, Payload: TypingPayload{ChatID: chatID, UserID: c.UserID()}}
	return t.dispatcher.ToRoom(chatID, ev, ExcludeConn(c.ID()))
}
