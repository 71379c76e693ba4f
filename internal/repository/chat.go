package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatroom/internal/logger"
	"github.com/chatroom/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const chatCols = `id, name, is_group_chat, admin_id, participants, last_message_id, COALESCE(direct_key,''), created_at, updated_at`

type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func scanChat(s interface{ Scan(dest ...any) error }, c *model.Chat) error {
	return s.Scan(&c.ID, &c.Name, &c.IsGroupChat, &c.Admin, &c.Participants, &c.LastMessageID, &c.DirectKey, &c.CreatedAt, &c.UpdatedAt)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *ChatRepository) Create(ctx context.Context, c *model.Chat) error {
	defer logger.DeferLogDuration("chat.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chats (id, name, is_group_chat, admin_id, participants, last_message_id, direct_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Name, c.IsGroupChat, c.Admin, c.Participants, c.LastMessageID, nullIfEmpty(c.DirectKey), c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("chatRepo.Create: %w", err)
	}
	return nil
}

func (r *ChatRepository) GetByID(ctx context.Context, id string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.GetByID", time.Now())()
	return r.one(ctx, "chatRepo.GetByID", `SELECT `+chatCols+` FROM chats WHERE id = $1`, id)
}

func (r *ChatRepository) FindDirect(ctx context.Context, a, b string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.FindDirect", time.Now())()
	return r.one(ctx, "chatRepo.FindDirect", `SELECT `+chatCols+` FROM chats WHERE direct_key = $1`, model.DirectKey(a, b))
}

func (r *ChatRepository) ListForUser(ctx context.Context, userID string) ([]model.Chat, error) {
	defer logger.DeferLogDuration("chat.ListForUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+chatCols+` FROM chats
		 WHERE $1 = ANY(participants)
		 ORDER BY updated_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.ListForUser query: %w", err)
	}
	defer rows.Close()

	chats := make([]model.Chat, 0, 16)
	for rows.Next() {
		var c model.Chat
		if err := scanChat(rows, &c); err != nil {
			return nil, fmt.Errorf("chatRepo.ListForUser scan: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatRepo.ListForUser rows: %w", err)
	}
	return chats, nil
}

func (r *ChatRepository) Rename(ctx context.Context, id, name string, at time.Time) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.Rename", time.Now())()
	return r.one(ctx, "chatRepo.Rename",
		`UPDATE chats SET name = $2, updated_at = $3 WHERE id = $1 RETURNING `+chatCols, id, name, at)
}

func (r *ChatRepository) AddParticipant(ctx context.Context, id, userID string, at time.Time) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.AddParticipant", time.Now())()
	c, err := r.one(ctx, "chatRepo.AddParticipant",
		`UPDATE chats SET participants = array_append(participants, $2), updated_at = $3
		 WHERE id = $1 AND NOT ($2 = ANY(participants))
		 RETURNING `+chatCols, id, userID, at)
	if !errors.Is(err, ErrNotFound) {
		return c, err
	}
	// Ни одной строки: чата нет или пользователь уже в нём.
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrDuplicate
}

func (r *ChatRepository) RemoveParticipant(ctx context.Context, id, userID, admin string, at time.Time) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.RemoveParticipant", time.Now())()
	return r.one(ctx, "chatRepo.RemoveParticipant",
		`UPDATE chats SET participants = array_remove(participants, $2), admin_id = $3, updated_at = $4
		 WHERE id = $1 AND $2 = ANY(participants)
		 RETURNING `+chatCols, id, userID, admin, at)
}

func (r *ChatRepository) SetLastMessage(ctx context.Context, id string, messageID *string, at time.Time) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.SetLastMessage", time.Now())()
	return r.one(ctx, "chatRepo.SetLastMessage",
		`UPDATE chats SET last_message_id = $2, updated_at = $3 WHERE id = $1 RETURNING `+chatCols, id, messageID, at)
}

func (r *ChatRepository) ReplaceLastMessage(ctx context.Context, id, from string, to *string, at time.Time) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.ReplaceLastMessage", time.Now())()
	c, err := r.one(ctx, "chatRepo.ReplaceLastMessage",
		`UPDATE chats SET last_message_id = $3, updated_at = $4
		 WHERE id = $1 AND last_message_id = $2
		 RETURNING `+chatCols, id, from, to, at)
	if errors.Is(err, ErrNotFound) {
		return r.GetByID(ctx, id)
	}
	return c, err
}

func (r *ChatRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("chat.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("chatRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLastRead не сдвигает отметку назад.
func (r *ChatRepository) SetLastRead(ctx context.Context, chatID, userID string, at time.Time) error {
	defer logger.DeferLogDuration("chat.SetLastRead", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_reads (chat_id, user_id, last_read_at) VALUES ($1, $2, $3)
		 ON CONFLICT (chat_id, user_id) DO UPDATE
		 SET last_read_at = GREATEST(chat_reads.last_read_at, EXCLUDED.last_read_at)`,
		chatID, userID, at,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("chatRepo.SetLastRead: %w", err)
	}
	return nil
}

func (r *ChatRepository) LastRead(ctx context.Context, chatID, userID string) (time.Time, error) {
	defer logger.DeferLogDuration("chat.LastRead", time.Now())()
	var at time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT last_read_at FROM chat_reads WHERE chat_id = $1 AND user_id = $2`, chatID, userID,
	).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("chatRepo.LastRead: %w", err)
	}
	return at, nil
}

func (r *ChatRepository) one(ctx context.Context, op, sql string, args ...any) (*model.Chat, error) {
	c := &model.Chat{}
	err := scanChat(r.pool.QueryRow(ctx, sql, args...), c)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}
