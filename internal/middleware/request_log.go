package middleware

import (
	"net/http"
	"time"

	"github.com/chatroom/internal/logger"
)

// RequestLog логирует method, path, статус и время выполнения (асинхронно, не блокирует).
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrap := wrapWriter(w)
		next.ServeHTTP(wrap, r)
		if wrap.status >= http.StatusInternalServerError {
			logger.Errorf("http %s %s -> %d (%s)", r.Method, r.URL.Path, wrap.status, time.Since(start))
			return
		}
		logger.LogDuration("http "+r.Method+" "+r.URL.Path, start)
	})
}
