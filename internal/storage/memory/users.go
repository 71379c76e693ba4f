package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/chatroom/internal/model"
	"github.com/chatroom/internal/storage"
)

type userStore struct{ c *Client }

func (s userStore) Create(ctx context.Context, u *model.User) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	key := strings.ToLower(u.Username)
	if _, ok := s.c.usernames[key]; ok {
		return storage.ErrDuplicate
	}
	if _, ok := s.c.users[u.ID]; ok {
		return storage.ErrDuplicate
	}
	cp := *u
	s.c.users[u.ID] = &cp
	s.c.usernames[key] = u.ID
	return nil
}

func (s userStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	u, ok := s.c.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s userStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	id, ok := s.c.usernames[strings.ToLower(username)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *s.c.users[id]
	return &cp, nil
}

func (s userStore) GetByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	out := make([]model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.c.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s userStore) Search(ctx context.Context, query, excludeID string, limit int) ([]model.User, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	q := strings.ToLower(query)
	var out []model.User
	for _, u := range s.c.users {
		if u.ID == excludeID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(u.Username), q) && !strings.Contains(strings.ToLower(u.Email), q) {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
