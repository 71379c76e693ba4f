package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/chatroom/internal/auth"
	"github.com/chatroom/internal/logger"
)

// TokenCookie: cookie, который ставит вход для браузерных клиентов.
const TokenCookie = "jwt"

// TokenFromRequest ищет токен: Authorization: Bearer, затем cookie jwt,
// затем (если allowQuery) ?token=: браузерный WebSocket не умеет заголовки.
func TokenFromRequest(r *http.Request, allowQuery bool) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if allowQuery {
		return r.URL.Query().Get("token")
	}
	return ""
}

// JWTAuth пропускает запрос только с валидным токеном и кладёт claims в контекст.
func JWTAuth(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r, false)
			if token == "" {
				unauthorized(w)
				return
			}
			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrRevoked) {
					logger.Errorf("auth verify token=%s: %v", MaskToken(token), err)
				}
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
}
