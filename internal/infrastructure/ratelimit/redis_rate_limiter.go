package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wrensec/keygate/internal/config"
	"github.com/wrensec/keygate/pkg/constants"
	"github.com/wrensec/keygate/pkg/logger"
)

// RedisRateLimiter enforces a fixed-window request limit per api key across
// all instances. A Redis outage falls back to per-process token buckets so
// traffic is still bounded, just less precisely.
type RedisRateLimiter struct {
	client redis.UniversalClient
	limit  int64
	window time.Duration
	local  *bucketPool
	logger logger.Logger
}

// NewRedisRateLimiter creates a limiter from configuration.
func NewRedisRateLimiter(client redis.UniversalClient, cfg config.RateLimitConfig, log logger.Logger) *RedisRateLimiter {
	rate := float64(cfg.Limit) / cfg.Window.Seconds()
	return &RedisRateLimiter{
		client: client,
		limit:  cfg.Limit,
		window: cfg.Window,
		local:  newBucketPool(float64(cfg.Limit), rate),
		logger: log.WithComponent("ratelimit"),
	}
}

// Allow reports whether one more request from key fits in the current
// window, and how many requests remain.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, int64) {
	redisKey := constants.RateLimitKeyPrefix + key

	pipe := r.client.TxPipeline()
	count := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn(ctx, "shared rate limit counter unavailable, using local fallback",
			logger.Error(err))
		if r.local.get(key).Allow() {
			return true, 0
		}
		return false, 0
	}

	used := count.Val()
	if used > r.limit {
		return false, 0
	}
	return true, r.limit - used
}
