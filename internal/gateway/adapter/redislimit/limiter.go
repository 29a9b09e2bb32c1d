// Package redislimit shares rate limit counters between service replicas
// through Redis.
package redislimit

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	gw "bookstore/internal/gateway"
)

const callTimeout = 250 * time.Millisecond

// windowScript counts a hit in the key's fixed window and reports the count
// with the window's remaining lifetime.
var windowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// Limiter is a fixed window limiter. When Redis is unreachable it falls back
// to a process-local limiter rather than failing requests.
type Limiter struct {
	client   *redis.Client
	limit    int
	window   time.Duration
	prefix   string
	fallback gw.RateLimiter
	logger   *slog.Logger
}

// New creates a limiter allowing limit hits per key per window.
func New(client *redis.Client, limit int, window time.Duration, fallback gw.RateLimiter, logger *slog.Logger) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		client:   client,
		limit:    limit,
		window:   window,
		prefix:   "catalog:rl:",
		fallback: fallback,
		logger:   logger,
	}
}

// Allow checks whether a request identified by key should be allowed.
func (l *Limiter) Allow(key string) gw.RateLimitResult {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	res, err := windowScript.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil || len(res) < 2 {
		l.logger.Warn("redis rate limiter unavailable, using local limiter", "error", err)
		return l.degrade(key)
	}

	count, ttlMs := res[0], res[1]
	if count <= int64(l.limit) {
		return gw.RateLimitResult{Allowed: true}
	}
	if ttlMs < 0 {
		ttlMs = l.window.Milliseconds()
	}
	retry := max(int(math.Ceil(float64(ttlMs)/1000)), 1)
	return gw.RateLimitResult{Allowed: false, RetryAfter: retry}
}

// Ping checks the Redis connection.
func (l *Limiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Limiter) degrade(key string) gw.RateLimitResult {
	if l.fallback == nil {
		return gw.RateLimitResult{Allowed: true}
	}
	return l.fallback.Allow(key)
}
