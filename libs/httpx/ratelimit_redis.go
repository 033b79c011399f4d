package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisRateLimitNamespace = "ratelimit"

// RedisRateLimiter caps requests per client IP for one route scope, counted in Redis
// so every appointment-service replica shares the same budget.
//
// Counters are bucketed by aligned windows under
// ratelimit:<scope>:<client>:<window start, unix seconds>. A bucket is never reused;
// it expires one window after it closes.
type RedisRateLimiter struct {
	rdb    redis.Cmdable
	scope  string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisRateLimiter(rdb redis.Cmdable, scope string, limit int, window time.Duration) *RedisRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window < time.Second {
		window = time.Minute
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = "default"
	}
	return &RedisRateLimiter{rdb: rdb, scope: scope, limit: limit, window: window, now: time.Now}
}

// Middleware rejects over-budget clients with 429. When Redis cannot be reached the
// request is let through if failOpen is set and refused with 503 otherwise.
func (rl *RedisRateLimiter) Middleware(logger *slog.Logger, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := rl.now()
			start := now.Truncate(rl.window)
			count, err := rl.hit(r.Context(), rl.bucket(clientKey(r), start), start.Add(2*rl.window).Sub(now))
			if err != nil {
				if logger != nil {
					logger.Warn("rate limit counter unavailable", "scope", rl.scope, "err", err)
				}
				if failOpen {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "rate limiter unavailable", http.StatusServiceUnavailable)
				return
			}

			remaining := int64(rl.limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if count > int64(rl.limit) {
				w.Header().Set("Retry-After", strconv.Itoa(secondsUntil(now, start.Add(rl.window))))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RedisRateLimiter) bucket(client string, start time.Time) string {
	return redisRateLimitNamespace + ":" + rl.scope + ":" + client + ":" + strconv.FormatInt(start.Unix(), 10)
}

// hit counts one request in key. The TTL is relative so replica clock skew against
// Redis only shifts when a closed bucket is dropped.
func (rl *RedisRateLimiter) hit(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := rl.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func secondsUntil(now, t time.Time) int {
	d := t.Sub(now)
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
