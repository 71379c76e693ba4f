package service

import (
	"context"
	"errors"

	"github.com/chatroom/internal/model"
	"github.com/chatroom/internal/storage"
	"github.com/samber/lo"
)

func (c *core) loadUsers(ctx context.Context, ids []string) (map[string]model.User, error) {
	users, err := c.store.Users().GetByIDs(ctx, lo.Uniq(ids))
	if err != nil {
		return nil, err
	}
	return lo.KeyBy(users, func(u model.User) string { return u.ID }), nil
}

// publicUsers keeps the order of ids and skips ids without a user record.
func publicUsers(ids []string, users map[string]model.User) []model.UserPublic {
	out := make([]model.UserPublic, 0, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			out = append(out, u.ToPublic())
		}
	}
	return out
}

func senderOf(id string, users map[string]model.User) *model.UserPublic {
	u, ok := users[id]
	if !ok {
		return nil
	}
	p := u.ToPublic()
	return &p
}

// chatViews enriches chats with members, last message and, when viewerID is set, the unread count.
func (c *core) chatViews(ctx context.Context, chats []model.Chat, viewerID string) ([]model.ChatView, error) {
	ids := make([]string, 0, len(chats)*3)
	last := make(map[string]*model.Message, len(chats))
	for _, ch := range chats {
		ids = append(ids, ch.Participants...)
		if ch.LastMessageID == nil {
			continue
		}
		m, err := c.store.Messages().GetByID(ctx, *ch.LastMessageID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if m.ChatID == ch.ID {
			last[ch.ID] = m
			ids = append(ids, m.SenderID)
		}
	}
	users, err := c.loadUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]model.ChatView, 0, len(chats))
	for _, ch := range chats {
		v := model.ChatView{Chat: ch, Members: publicUsers(ch.Participants, users)}
		if m := last[ch.ID]; m != nil {
			m.Sender = senderOf(m.SenderID, users)
			v.LastMessage = m
		}
		if viewerID != "" {
			n, err := c.unread(ctx, ch.ID, viewerID)
			if err != nil {
				return nil, err
			}
			v.UnreadCount = n
		}
		views = append(views, v)
	}
	return views, nil
}

func (c *core) chatView(ctx context.Context, ch *model.Chat, viewerID string) (*model.ChatView, error) {
	views, err := c.chatViews(ctx, []model.Chat{*ch}, viewerID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (c *core) unread(ctx context.Context, chatID, userID string) (int, error) {
	since, err := c.store.Chats().LastRead(ctx, chatID, userID)
	if err != nil {
		return 0, err
	}
	return c.store.Messages().CountSince(ctx, chatID, userID, since)
}

func (c *core) attachSenders(ctx context.Context, msgs []model.Message) error {
	users, err := c.loadUsers(ctx, lo.Map(msgs, func(m model.Message, _ int) string { return m.SenderID }))
	if err != nil {
		return err
	}
	for i := range msgs {
		msgs[i].Sender = senderOf(msgs[i].SenderID, users)
	}
	return nil
}
