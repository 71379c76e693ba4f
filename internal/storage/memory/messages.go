package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/chatroom/internal/model"
	"github.com/chatroom/internal/storage"
)

type messageStore struct{ c *Client }

func (s messageStore) Create(ctx context.Context, m *model.Message) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if _, ok := s.c.messages[m.ID]; ok {
		return storage.ErrDuplicate
	}
	s.c.seq++
	s.c.messages[m.ID] = &storedMessage{msg: m.Clone(), seq: s.c.seq}
	s.c.byChat[m.ChatID] = append(s.c.byChat[m.ChatID], m.ID)
	return nil
}

func (s messageStore) GetByID(ctx context.Context, id string) (*model.Message, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	sm, ok := s.c.messages[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return sm.msg.Clone(), nil
}

// ordered returns the chat's messages sorted by creation time, insertion order breaking ties.
// Caller holds the lock.
func (s messageStore) ordered(chatID string) []*storedMessage {
	ids := s.c.byChat[chatID]
	out := make([]*storedMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.c.messages[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.msg.CreatedAt.Equal(b.msg.CreatedAt) {
			return a.seq < b.seq
		}
		return a.msg.CreatedAt.Before(b.msg.CreatedAt)
	})
	return out
}

func (s messageStore) ListByChat(ctx context.Context, chatID string) ([]model.Message, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	stored := s.ordered(chatID)
	out := make([]model.Message, 0, len(stored))
	for _, sm := range stored {
		out = append(out, *sm.msg.Clone())
	}
	return out, nil
}

func (s messageStore) Latest(ctx context.Context, chatID string) (*model.Message, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	stored := s.ordered(chatID)
	if len(stored) == 0 {
		return nil, storage.ErrNotFound
	}
	return stored[len(stored)-1].msg.Clone(), nil
}

func (s messageStore) Delete(ctx context.Context, id string) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	sm, ok := s.c.messages[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.c.messages, id)
	ids := s.c.byChat[sm.msg.ChatID]
	if i := slices.Index(ids, id); i >= 0 {
		s.c.byChat[sm.msg.ChatID] = slices.Delete(ids, i, i+1)
	}
	return nil
}

func (s messageStore) DeleteByChat(ctx context.Context, chatID string) ([]string, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	var refs []string
	for _, id := range s.c.byChat[chatID] {
		refs = append(refs, s.c.messages[id].msg.Attachments...)
		delete(s.c.messages, id)
	}
	delete(s.c.byChat, chatID)
	return refs, nil
}

func (s messageStore) CountSince(ctx context.Context, chatID, excludeSender string, since time.Time) (int, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	n := 0
	for _, id := range s.c.byChat[chatID] {
		m := s.c.messages[id].msg
		if m.SenderID != excludeSender && m.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}
