// Package inmem holds the process-local rate limiter.
package inmem

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	gw "bookstore/internal/gateway"
)

const staleThreshold = 10 * time.Minute

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter.
// perSecond is the refill rate, burst the bucket capacity.
// clock is injectable for deterministic testing; nil means time.Now.
func NewRateLimiter(perSecond float64, burst int, clock func() time.Time) *RateLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		now:     clock,
		buckets: make(map[string]*bucket),
	}
}

// Allow checks whether a request identified by key should be allowed.
func (rl *RateLimiter) Allow(key string) gw.RateLimitResult {
	now := rl.now()
	lim := rl.bucketFor(key, now)

	if lim.AllowN(now, 1) {
		return gw.RateLimitResult{Allowed: true}
	}

	// Ask when the next token would be available without keeping the reservation.
	r := lim.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)

	retryAfter := max(int(math.Ceil(delay.Seconds())), 1)
	return gw.RateLimitResult{Allowed: false, RetryAfter: retryAfter}
}

func (rl *RateLimiter) bucketFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// Cleanup removes stale buckets that haven't been seen recently.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > staleThreshold {
			delete(rl.buckets, key)
		}
	}
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (rl *RateLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// BucketCount returns the number of active buckets (for testing).
func (rl *RateLimiter) BucketCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
