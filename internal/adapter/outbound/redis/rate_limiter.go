package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateLimiter is a sliding-window request limiter backed by one sorted set per key.
type RateLimiter struct {
	client goredis.UniversalClient
	now    func() time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(client goredis.UniversalClient) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow records one request for key and reports whether it fits within limit
// requests per window. Rejected requests are not counted.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := rateLimitKeyPrefix + key
	now := r.now().UnixNano()
	member := strconv.FormatInt(now, 10) + "-" + strconv.FormatInt(r.client.Incr(ctx, fullKey+":seq").Val(), 10)

	var count *goredis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, fullKey, "0", fmt.Sprintf("%d", now-window.Nanoseconds()))
		pipe.ZAdd(ctx, fullKey, goredis.Z{Score: float64(now), Member: member})
		count = pipe.ZCard(ctx, fullKey)
		pipe.Expire(ctx, fullKey, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}

	if count.Val() > int64(limit) {
		r.client.ZRem(ctx, fullKey, member)
		return false, nil
	}
	return true, nil
}

// Remaining returns how many more requests key may make in the current window.
func (r *RateLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	fullKey := rateLimitKeyPrefix + key
	now := r.now().UnixNano()

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, fullKey, "0", fmt.Sprintf("%d", now-window.Nanoseconds()))
	countCmd := pipe.ZCard(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	remaining := limit - int(countCmd.Val())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
