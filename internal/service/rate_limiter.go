package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/clavis-auth/pkg/database"
	"github.com/redis/go-redis/v9"
)

// RateLimitDecision is the outcome of a rate limit check
type RateLimitDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter is a sliding window log limiter keyed by caller
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}

// redisRateLimiter stores one sorted set per key, scored by request time
type redisRateLimiter struct {
	redis *database.Redis
	now   func() time.Time
}

// NewRateLimiter creates a new Redis rate limiter
func NewRateLimiter(redis *database.Redis) RateLimiter {
	return &redisRateLimiter{redis: redis, now: time.Now}
}

// Allow records the request and counts the window in one transaction, so
// concurrent callers cannot both observe room for the last slot. A request
// over the limit is removed again and takes no slot.
func (r *redisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error) {
	now := r.now()
	redisKey := r.redis.Key("ratelimit", key)
	windowStart := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)
	member := uuid.New().String()

	var count *redis.IntCmd
	var oldest *redis.ZSliceCmd
	_, err := r.redis.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "0", windowStart)
		pipe.ZAdd(ctx, redisKey, redis.Z{
			Score:  float64(now.UnixMilli()),
			Member: member,
		})
		count = pipe.ZCard(ctx, redisKey)
		oldest = pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
		pipe.PExpire(ctx, redisKey, window+time.Minute)
		return nil
	})
	if err != nil {
		return RateLimitDecision{}, fmt.Errorf("failed to record request: %w", err)
	}

	used := int(count.Val())
	if used <= limit {
		return RateLimitDecision{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - used,
		}, nil
	}

	if err := r.redis.Client.ZRem(ctx, redisKey, member).Err(); err != nil {
		return RateLimitDecision{}, fmt.Errorf("failed to release rejected request: %w", err)
	}

	retryAfter := window
	if entries := oldest.Val(); len(entries) > 0 {
		oldestAt := time.UnixMilli(int64(entries[0].Score))
		retryAfter = window - now.Sub(oldestAt)
	}
	return RateLimitDecision{Limit: limit, RetryAfter: retryAfter.Round(time.Second)}, nil
}
