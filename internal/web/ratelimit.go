package web

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/justestif/go-music-personality/internal/spotify"
)

const (
	limiterIdleTTL    = 15 * time.Minute
	limiterPruneEvery = 10 * time.Minute
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per client IP. A nil or disabled limiter lets
// every request through.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	every     time.Duration
	burst     int
	lastPrune time.Time
	now       func() time.Time
}

// NewRateLimiter allows perMinute requests per minute per IP, with a burst of
// the same size. Zero or negative disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &RateLimiter{
		limiters: make(map[string]*ipLimiter),
		every:    time.Minute / time.Duration(perMinute),
		burst:    perMinute,
		now:      time.Now,
	}
}

// Middleware rejects requests over the limit with a plain 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return rl.Limit(nil)(next)
}

// Limit returns middleware that hands requests over the limit to reject.
// A nil reject answers with a plain 429.
func (rl *RateLimiter) Limit(reject http.HandlerFunc) func(http.Handler) http.Handler {
	if reject == nil {
		reject = rejectTooMany
	}
	return func(next http.Handler) http.Handler {
		if rl == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(clientIP(r)) {
				w.Header().Set("Retry-After", "60")
				reject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectTooMany(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, spotify.MessageRateLimited, http.StatusTooManyRequests)
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastPrune) > limiterPruneEvery {
		for key, entry := range rl.limiters {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(rl.limiters, key)
			}
		}
		rl.lastPrune = now
	}

	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(rate.Every(rl.every), rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// clientIP returns the request's IP. RealIP middleware has already replaced
// RemoteAddr with the forwarded address when one was sent.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
