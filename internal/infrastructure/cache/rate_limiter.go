package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisRateLimiter tracks request timestamps in a sorted set per key,
// scored by nanosecond arrival time. Counting members newer than
// (now - window) gives an exact sliding window instead of the bursty
// edges of fixed buckets.
type redisRateLimiter struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisRateLimiter(client *redis.Client, logger *zap.Logger) RateLimiter {
	return &redisRateLimiter{client: client, logger: logger}
}

func (r *redisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	member := strconv.FormatInt(now.UnixNano(), 36)
	setKey := RateLimitPrefix + key

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, setKey, "-inf", fmtScore(now.Add(-window)))
	pipe.ZAdd(ctx, setKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	sizeCmd := pipe.ZCard(ctx, setKey)
	pipe.Expire(ctx, setKey, window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("rate limiter pipeline failed",
			zap.String("key", key),
			zap.Error(err))
		return false, fmt.Errorf("rate limiter pipeline failed: %w", err)
	}

	// The set now includes this request. Over budget means this request
	// pushed it over, so take it back out before denying.
	if sizeCmd.Val() > int64(limit) {
		r.client.ZRem(ctx, setKey, member)
		r.logger.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.Int("limit", limit),
			zap.Duration("window", window))
		return false, nil
	}
	return true, nil
}

func (r *redisRateLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	used, err := r.inWindow(ctx, key, window)
	if err != nil {
		return 0, err
	}
	if remaining := limit - used; remaining > 0 {
		return remaining, nil
	}
	return 0, nil
}

func (r *redisRateLimiter) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, RateLimitPrefix+key).Err(); err != nil {
		r.logger.Error("rate limiter reset failed",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("rate limiter reset failed: %w", err)
	}
	return nil
}

// inWindow counts requests recorded inside the window without mutating
// the set; stale members age out on the next Allow.
func (r *redisRateLimiter) inWindow(ctx context.Context, key string, window time.Duration) (int, error) {
	since := fmtScore(time.Now().Add(-window))
	n, err := r.client.ZCount(ctx, RateLimitPrefix+key, since, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("rate limiter count failed: %w", err)
	}
	return int(n), nil
}

func fmtScore(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}
