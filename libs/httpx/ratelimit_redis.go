package httpx

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisFixedWindowScript increments the counter for the current window and
// sets the expiry only on the first hit, so the window boundary is stable.
var redisFixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisRateLimiter is a fixed-window limiter shared across instances. All
// replicas pointed at the same Redis see one combined count per client.
type RedisRateLimiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
}

// NewRedisRateLimiter builds a limiter whose keys are namespaced by prefix so
// services sharing a Redis do not share windows.
func NewRedisRateLimiter(client redis.UniversalClient, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:" + prefix,
	}
}

// Allow reports whether the client may proceed. The error is non-nil when
// Redis is unreachable; callers decide whether to fail open.
func (rl *RedisRateLimiter) Allow(r *http.Request) (bool, error) {
	key := fmt.Sprintf("%s:%s:%d", rl.prefix, clientKey(r), time.Now().UnixMilli()/rl.window.Milliseconds())
	count, err := redisFixedWindowScript.Run(r.Context(), rl.client, []string{key}, rl.window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return count <= rl.limit, nil
}

// Middleware enforces the limit. When failOpen is true, Redis errors let the
// request through with a warning instead of returning 503.
func (rl *RedisRateLimiter) Middleware(logger *slog.Logger, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := rl.Allow(r)
			if err != nil {
				logger.Warn("rate limiter redis error", "error", err)
				if !failOpen {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
