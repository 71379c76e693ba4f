package middleware

import (
	"context"

	"github.com/chatroom/internal/auth"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	ClaimsKey contextKey = "claims"
)

// GetUserID возвращает user_id из контекста (устанавливается JWTAuth).
func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

func GetClaims(ctx context.Context) *auth.Claims {
	v, _ := ctx.Value(ClaimsKey).(*auth.Claims)
	return v
}

// WithClaims кладёт в контекст проверенные claims и user_id из них.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	return context.WithValue(ctx, UserIDKey, claims.UserID)
}
