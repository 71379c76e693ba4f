package repository

import (
	"errors"

	"github.com/chatroom/internal/storage"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = storage.ErrNotFound
	ErrDuplicate = storage.ErrDuplicate
)

// Postgres собирает репозитории в storage.Store поверх одного пула.
type Postgres struct {
	users    *UserRepository
	chats    *ChatRepository
	messages *MessageRepository
}

var _ storage.Store = (*Postgres)(nil)

func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{
		users:    NewUserRepository(pool),
		chats:    NewChatRepository(pool),
		messages: NewMessageRepository(pool),
	}
}

func (p *Postgres) Users() storage.UserStore       { return p.users }
func (p *Postgres) Chats() storage.ChatStore       { return p.chats }
func (p *Postgres) Messages() storage.MessageStore { return p.messages }

// isUniqueViolation: код 23505, нарушение UNIQUE.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
