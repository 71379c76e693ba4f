package ws

import "github.com/chatroom/internal/model"

type EventType string

// Outbound event names match what the web client listens for.
const (
	EventConnected        EventType = "connected"
	EventDisconnected     EventType = "disconnected"
	EventJoinChat         EventType = "joinChat"
	EventNewChat          EventType = "newChat"
	EventUpdateGroupName  EventType = "updateGroupName"
	EventParticipantAdded EventType = "addParticipantToGroup"
	EventParticipantLeft  EventType = "removeParticipantFromGroup"
	EventLeaveChat        EventType = "leaveChat"
	EventMessageReceived  EventType = "messageReceived"
	EventMessageDeleted   EventType = "messageDeleted"
	EventTyping           EventType = "typing"
	EventStopTyping       EventType = "stopTyping"
	EventSocketError      EventType = "socketError"
)

// Inbound frame types. typing and stopTyping reuse the outbound names.
const (
	InboundJoinChat  EventType = "joinChat"
	InboundLeaveRoom EventType = "leaveRoom"
)

// IncomingMessage is what the client sends to the server.
type IncomingMessage struct {
	Type   EventType `json:"type"`
	ChatID string    `json:"chat_id,omitempty"`
}

// OutgoingMessage is what the server sends to the client.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

type ConnectedPayload struct {
	UserID       string `json:"user_id"`
	ConnectionID string `json:"connection_id,omitempty"`
}

type RoomPayload struct {
	ChatID string `json:"chat_id"`
}

type TypingPayload struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

// ParticipantPayload goes out when a member is added to or leaves a group.
type ParticipantPayload struct {
	ChatID  string          `json:"chat_id"`
	UserID  string          `json:"user_id"`
	ActorID string          `json:"actor_id"`
	IsLeave bool            `json:"is_leave"`
	Chat    *model.ChatView `json:"chat,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func socketError(msg string) OutgoingMessage {
	return OutgoingMessage{Type: EventSocketError, Payload: ErrorPayload{Message: msg}}
}
