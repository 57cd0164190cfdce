package server

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig bounds how often one user may call the model provider.
type RateLimitConfig struct {
	PerMinute       int
	Burst           int
	CleanupInterval time.Duration
}

type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per user. Idle buckets are dropped by
// a background loop until Stop is called.
type RateLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration
	log   *slog.Logger

	mu       sync.Mutex
	limiters map[string]*userLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(cfg RateLimitConfig, log *slog.Logger) *RateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	rl := &RateLimiter{
		limit:    rate.Limit(float64(cfg.PerMinute) / 60),
		burst:    cfg.Burst,
		ttl:      cfg.CleanupInterval * 2,
		log:      log,
		limiters: make(map[string]*userLimiter),
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop(cfg.CleanupInterval)
	return rl
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware rejects requests beyond the caller's budget with 429. It must
// run after identify.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := userIDFromContext(r)
			if !rl.allow(user, time.Now()) {
				rl.log.Warn("rate limit exceeded", "user", user, "path", r.URL.Path)
				retry := 60
				if rl.limit > 0 {
					retry = max(1, int(math.Ceil(1/float64(rl.limit))))
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeJSON(w, http.StatusTooManyRequests, errorBody{
					Error: "too many AI requests, try again later",
					Kind:  "rate_limited",
					Code:  "rate_limit_exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Len reports how many users currently hold a bucket.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) allow(user string, now time.Time) bool {
	rl.mu.Lock()
	ul, ok := rl.limiters[user]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[user] = ul
	}
	ul.lastAccess = now
	rl.mu.Unlock()
	return ul.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			rl.cleanup(now)
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for user, ul := range rl.limiters {
		if now.Sub(ul.lastAccess) > rl.ttl {
			delete(rl.limiters, user)
		}
	}
}
