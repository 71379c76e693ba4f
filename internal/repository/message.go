package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatroom/internal/logger"
	"github.com/chatroom/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const messageCols = `id, chat_id, sender_id, content, attachments, created_at, updated_at`

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func scanMessage(s interface{ Scan(dest ...any) error }, m *model.Message) error {
	if err := s.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.Attachments, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return err
	}
	if m.Attachments == nil {
		m.Attachments = []string{}
	}
	return nil
}

func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	attachments := m.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, content, attachments, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.ChatID, m.SenderID, m.Content, attachments, m.CreatedAt, m.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("msgRepo.Create: %w", err)
	}
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.GetByID", time.Now())()
	m := &model.Message{}
	err := scanMessage(r.pool.QueryRow(ctx, `SELECT `+messageCols+` FROM messages WHERE id = $1`, id), m)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetByID: %w", err)
	}
	return m, nil
}

// ListByChat: по возрастанию времени; seq разрешает одинаковые created_at в порядке вставки.
func (r *MessageRepository) ListByChat(ctx context.Context, chatID string) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.ListByChat", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageCols+` FROM messages WHERE chat_id = $1 ORDER BY created_at, seq`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ListByChat query: %w", err)
	}
	defer rows.Close()

	msgs := make([]model.Message, 0, 64)
	for rows.Next() {
		var m model.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("msgRepo.ListByChat scan: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.ListByChat rows: %w", err)
	}
	return msgs, nil
}

func (r *MessageRepository) Latest(ctx context.Context, chatID string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.Latest", time.Now())()
	m := &model.Message{}
	err := scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageCols+` FROM messages WHERE chat_id = $1 ORDER BY created_at DESC, seq DESC LIMIT 1`, chatID), m)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Latest: %w", err)
	}
	return m, nil
}

func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("msg.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("msgRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MessageRepository) DeleteByChat(ctx context.Context, chatID string) ([]string, error) {
	defer logger.DeferLogDuration("msg.DeleteByChat", time.Now())()
	rows, err := r.pool.Query(ctx, `DELETE FROM messages WHERE chat_id = $1 RETURNING attachments`, chatID)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.DeleteByChat: %w", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var batch []string
		if err := rows.Scan(&batch); err != nil {
			return nil, fmt.Errorf("msgRepo.DeleteByChat scan: %w", err)
		}
		refs = append(refs, batch...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.DeleteByChat rows: %w", err)
	}
	return refs, nil
}

func (r *MessageRepository) CountSince(ctx context.Context, chatID, excludeSender string, since time.Time) (int, error) {
	defer logger.DeferLogDuration("msg.CountSince", time.Now())()
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE chat_id = $1 AND sender_id <> $2 AND created_at > $3`,
		chatID, excludeSender, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("msgRepo.CountSince: %w", err)
	}
	return n, nil
}
