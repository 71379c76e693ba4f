package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/chatroom/internal/model"
	"github.com/chatroom/internal/storage"
)

type chatStore struct{ c *Client }

func (s chatStore) Create(ctx context.Context, ch *model.Chat) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if _, ok := s.c.chats[ch.ID]; ok {
		return storage.ErrDuplicate
	}
	if ch.DirectKey != "" {
		if _, ok := s.c.direct[ch.DirectKey]; ok {
			return storage.ErrDuplicate
		}
		s.c.direct[ch.DirectKey] = ch.ID
	}
	s.c.chats[ch.ID] = ch.Clone()
	return nil
}

func (s chatStore) GetByID(ctx context.Context, id string) (*model.Chat, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	ch, ok := s.c.chats[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return ch.Clone(), nil
}

func (s chatStore) FindDirect(ctx context.Context, a, b string) (*model.Chat, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	id, ok := s.c.direct[model.DirectKey(a, b)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.c.chats[id].Clone(), nil
}

func (s chatStore) ListForUser(ctx context.Context, userID string) ([]model.Chat, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	var out []model.Chat
	for _, ch := range s.c.chats {
		if ch.HasParticipant(userID) {
			out = append(out, *ch.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// mutate applies fn to the stored chat under the write lock.
func (s chatStore) mutate(id string, fn func(ch *model.Chat) error) (*model.Chat, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	ch, ok := s.c.chats[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if err := fn(ch); err != nil {
		return nil, err
	}
	return ch.Clone(), nil
}

func (s chatStore) Rename(ctx context.Context, id, name string, at time.Time) (*model.Chat, error) {
	return s.mutate(id, func(ch *model.Chat) error {
		ch.Name = name
		ch.UpdatedAt = at
		return nil
	})
}

func (s chatStore) AddParticipant(ctx context.Context, id, userID string, at time.Time) (*model.Chat, error) {
	return s.mutate(id, func(ch *model.Chat) error {
		if ch.HasParticipant(userID) {
			return storage.ErrDuplicate
		}
		ch.Participants = append(ch.Participants, userID)
		ch.UpdatedAt = at
		return nil
	})
}

func (s chatStore) RemoveParticipant(ctx context.Context, id, userID, admin string, at time.Time) (*model.Chat, error) {
	return s.mutate(id, func(ch *model.Chat) error {
		i := slices.Index(ch.Participants, userID)
		if i < 0 {
			return storage.ErrNotFound
		}
		ch.Participants = slices.Delete(ch.Participants, i, i+1)
		ch.Admin = admin
		ch.UpdatedAt = at
		return nil
	})
}

func (s chatStore) SetLastMessage(ctx context.Context, id string, messageID *string, at time.Time) (*model.Chat, error) {
	return s.mutate(id, func(ch *model.Chat) error {
		ch.LastMessageID = cloneID(messageID)
		ch.UpdatedAt = at
		return nil
	})
}

func (s chatStore) ReplaceLastMessage(ctx context.Context, id, from string, to *string, at time.Time) (*model.Chat, error) {
	return s.mutate(id, func(ch *model.Chat) error {
		if ch.LastMessageID == nil || *ch.LastMessageID != from {
			return nil
		}
		ch.LastMessageID = cloneID(to)
		ch.UpdatedAt = at
		return nil
	})
}

func (s chatStore) Delete(ctx context.Context, id string) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	ch, ok := s.c.chats[id]
	if !ok {
		return storage.ErrNotFound
	}
	if ch.DirectKey != "" {
		delete(s.c.direct, ch.DirectKey)
	}
	delete(s.c.chats, id)
	for k := range s.c.reads {
		if k.chatID == id {
			delete(s.c.reads, k)
		}
	}
	return nil
}

func (s chatStore) SetLastRead(ctx context.Context, chatID, userID string, at time.Time) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if _, ok := s.c.chats[chatID]; !ok {
		return storage.ErrNotFound
	}
	s.c.reads[readKey{chatID, userID}] = at
	return nil
}

func (s chatStore) LastRead(ctx context.Context, chatID, userID string) (time.Time, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	return s.c.reads[readKey{chatID, userID}], nil
}

func cloneID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
