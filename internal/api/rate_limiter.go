package api

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per client IP. Sync requests cost more than
// reads because each one can fan out into chain fetches.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex

	limit rate.Limit
	burst int
}

// NewRateLimiter creates a per-client rate limiter
func NewRateLimiter(rps, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

func (rl *RateLimiter) getLimiter(client string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limiters[client]; ok {
		return limiter
	}

	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters[client] = limiter
	return limiter
}

// Allow reports whether a request from the client may proceed
func (rl *RateLimiter) Allow(client string) bool {
	return rl.getLimiter(client).Allow()
}

// RateLimitMiddleware enforces the per-client rate limit
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientIP(r)
			if !rl.Allow(client) {
				respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
