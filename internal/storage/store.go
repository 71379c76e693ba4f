// Package storage defines the store contracts. Implementations: repository (PostgreSQL),
// memory (tests and store_driver=memory), redis (token revocation and login attempts).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/chatroom/internal/model"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// GetByIDs silently skips unknown ids.
	GetByIDs(ctx context.Context, ids []string) ([]model.User, error)
	Search(ctx context.Context, query, excludeID string, limit int) ([]model.User, error)
}

// ChatStore mutations touch a single chat row and are atomic per chat.
type ChatStore interface {
	// Create returns ErrDuplicate when a direct chat with the same key exists.
	Create(ctx context.Context, c *model.Chat) error
	GetByID(ctx context.Context, id string) (*model.Chat, error)
	FindDirect(ctx context.Context, a, b string) (*model.Chat, error)
	// ListForUser returns chats the user participates in, most recently updated first.
	ListForUser(ctx context.Context, userID string) ([]model.Chat, error)
	Rename(ctx context.Context, id, name string, at time.Time) (*model.Chat, error)
	// AddParticipant returns ErrDuplicate when userID is already a participant.
	AddParticipant(ctx context.Context, id, userID string, at time.Time) (*model.Chat, error)
	// RemoveParticipant removes userID and sets admin in the same write.
	// ErrNotFound when the chat is missing or userID is not a participant.
	RemoveParticipant(ctx context.Context, id, userID, admin string, at time.Time) (*model.Chat, error)
	SetLastMessage(ctx context.Context, id string, messageID *string, at time.Time) (*model.Chat, error)
	// ReplaceLastMessage swaps the last-message reference only while it still equals from.
	ReplaceLastMessage(ctx context.Context, id, from string, to *string, at time.Time) (*model.Chat, error)
	Delete(ctx context.Context, id string) error
	SetLastRead(ctx context.Context, chatID, userID string, at time.Time) error
	// LastRead returns the zero time when the user never marked the chat read.
	LastRead(ctx context.Context, chatID, userID string) (time.Time, error)
}

type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
	GetByID(ctx context.Context, id string) (*model.Message, error)
	// ListByChat returns messages in creation order, oldest first.
	ListByChat(ctx context.Context, chatID string) ([]model.Message, error)
	Latest(ctx context.Context, chatID string) (*model.Message, error)
	Delete(ctx context.Context, id string) error
	// DeleteByChat removes every message of the chat and returns their attachment refs.
	DeleteByChat(ctx context.Context, chatID string) ([]string, error)
	CountSince(ctx context.Context, chatID, excludeSender string, since time.Time) (int, error)
}

type Store interface {
	Users() UserStore
	Chats() ChatStore
	Messages() MessageStore
}

// TokenStore keeps revoked tokens and counts login attempts.
// Implemented by redis.Client and memory.Tokens.
type TokenStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	AllowLoginAttempt(ctx context.Context, username string) (bool, error)
	Close() error
}
