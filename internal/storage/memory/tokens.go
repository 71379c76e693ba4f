package memory

import (
	"context"
	"sync"
	"time"
)

const (
	loginWindow      = 10 * time.Minute
	loginMaxAttempts = 10
)

// Tokens is the TokenStore used without Redis.
type Tokens struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	logins  map[string][]time.Time
}

func NewTokens() *Tokens {
	return &Tokens{
		revoked: make(map[string]time.Time),
		logins:  make(map[string][]time.Time),
	}
}

func (t *Tokens) Close() error { return nil }

func (t *Tokens) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	for id, exp := range t.revoked {
		if now.After(exp) {
			delete(t.revoked, id)
		}
	}
	t.revoked[tokenID] = now.Add(ttl)
	return nil
}

func (t *Tokens) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	exp, ok := t.revoked[tokenID]
	return ok && time.Now().Before(exp), nil
}

func (t *Tokens) AllowLoginAttempt(ctx context.Context, username string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	cut := now.Add(-loginWindow)
	var kept []time.Time
	for _, at := range t.logins[username] {
		if at.After(cut) {
			kept = append(kept, at)
		}
	}
	if len(kept) >= loginMaxAttempts {
		t.logins[username] = kept
		return false, nil
	}
	t.logins[username] = append(kept, now)
	return true, nil
}
