// Per-IP rate limiting for endpoints that hit the database.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter allows a fixed number of requests per IP per window.
type RateLimiter struct {
	mu      sync.Mutex
	seen    map[string]*window
	maxRate int
	span    time.Duration
}

type window struct {
	remaining int
	opened    time.Time
}

// NewRateLimiter creates a limiter allowing maxRate requests per span.
func NewRateLimiter(maxRate int, span time.Duration) *RateLimiter {
	rl := &RateLimiter{
		seen:    make(map[string]*window),
		maxRate: maxRate,
		span:    span,
	}
	go func() {
		for {
			time.Sleep(time.Hour)
			rl.cleanup()
		}
	}()
	return rl
}

// Allow reports whether the given IP is within its limit.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.seen[ip]
	if !ok || now.Sub(w.opened) >= rl.span {
		rl.seen[ip] = &window{remaining: rl.maxRate - 1, opened: now}
		return true
	}
	if w.remaining > 0 {
		w.remaining--
		return true
	}
	return false
}

// RetryAfter returns seconds until the IP's window resets.
func (rl *RateLimiter) RetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.seen[ip]
	if !ok {
		return 0
	}
	left := rl.span - time.Since(w.opened)
	if left < 0 {
		return 0
	}
	return int(left.Seconds()) + 1
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for ip, w := range rl.seen {
		if now.Sub(w.opened) > 2*rl.span {
			delete(rl.seen, ip)
		}
	}
}

// RateLimitMiddleware answers 429 once a client exceeds the limit.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.Allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter(ip)))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// remote address with its port stripped.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	ip := r.RemoteAddr
	if i := strings.LastIndexByte(ip, ':'); i >= 0 {
		ip = ip[:i]
	}
	return ip
}
