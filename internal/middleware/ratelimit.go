package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

const rateLimitWindow = time.Minute

type rateLimiter struct {
	mu     sync.Mutex
	times  map[string][]time.Time
	max    int
	window time.Duration
	now    func() time.Time
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{times: make(map[string][]time.Time), max: max, window: window, now: time.Now}
}

func (r *rateLimiter) allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	cutoff := now.Add(-r.window)
	slice := r.times[key]
	i := 0
	for _, t := range slice {
		if t.After(cutoff) {
			slice[i] = t
			i++
		}
	}
	slice = slice[:i]
	if len(slice) >= r.max {
		r.times[key] = slice
		return false
	}
	r.times[key] = append(slice, now)
	return true
}

// sweep удаляет ключи без обращений внутри окна.
func (r *rateLimiter) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.window)
	for k, slice := range r.times {
		if len(slice) == 0 || !slice[len(slice)-1].After(cutoff) {
			delete(r.times, k)
		}
	}
}

// RateLimitAPI ограничивает запросы к /api/* по IP и по user_id (если есть в контексте). 429 при превышении.
// IP берётся из RemoteAddr, поэтому перед ним нужен chi middleware.RealIP.
func RateLimitAPI(perMinute int) func(http.Handler) http.Handler {
	byIP := newRateLimiter(perMinute, rateLimitWindow)
	byUser := newRateLimiter(perMinute, rateLimitWindow)
	var calls int
	var mu sync.Mutex
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			calls++
			if calls%1000 == 0 {
				byIP.sweep()
				byUser.sweep()
			}
			mu.Unlock()

			ip := r.RemoteAddr
			if host, _, err := net.SplitHostPort(ip); err == nil {
				ip = host
			}
			if !byIP.allow(ip) {
				tooManyRequests(w)
				return
			}
			if userID := GetUserID(r.Context()); userID != "" {
				if !byUser.allow("u:" + userID) {
					tooManyRequests(w)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Retry-After", "60")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"too many requests"}` + "\n"))
}
