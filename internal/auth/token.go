//go:generate go run go.uber.org/mock/mockgen -source=token.go -destination=mocks/mock_verifier.go -package=mocks

// Package auth issues and verifies HS256 JWTs and hashes passwords with bcrypt.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatroom/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrRevoked      = errors.New("token revoked")
)

// Claims: sub is the user id, jti identifies the token for revocation.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Verifier resolves a bearer token to an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

type Manager struct {
	secret  []byte
	ttl     time.Duration
	issuer  string
	revoked storage.TokenStore
	now     func() time.Time
}

var _ Verifier = (*Manager)(nil)

// NewManager: revoked may be nil, then logout only clears the cookie.
func NewManager(secret string, ttl time.Duration, issuer string, revoked storage.TokenStore) *Manager {
	return &Manager{
		secret:  []byte(secret),
		ttl:     ttl,
		issuer:  issuer,
		revoked: revoked,
		now:     time.Now,
	}
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a token for userID.
func (m *Manager) Issue(userID string) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("auth.Issue: %w", err)
	}
	return signed, claims, nil
}

func (m *Manager) Verify(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	if m.revoked != nil && claims.ID != "" {
		revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("auth.Verify revocation: %w", err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}
	return claims, nil
}

// Revoke denylists the token until it would have expired anyway.
func (m *Manager) Revoke(ctx context.Context, claims *Claims) error {
	if m.revoked == nil || claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(m.now())
	if err := m.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("auth.Revoke: %w", err)
	}
	return nil
}
