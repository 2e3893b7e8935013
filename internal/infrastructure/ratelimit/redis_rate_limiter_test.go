package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/wrensec/keygate/internal/config"
	"github.com/wrensec/keygate/internal/infrastructure/ratelimit"
	"github.com/wrensec/keygate/pkg/logger"
)

func newLimiter(t *testing.T, limit int64, window time.Duration) (*ratelimit.RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := ratelimit.NewRedisRateLimiter(client, config.RateLimitConfig{
		Enabled: true,
		Limit:   limit,
		Window:  window,
	}, logger.NewNoopLogger())
	return limiter, s
}

func TestRedisRateLimiter_WithinLimit(t *testing.T) {
	limiter, _ := newLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _ := limiter.Allow(ctx, "client-a")
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, remaining := limiter.Allow(ctx, "client-a")
	assert.False(t, allowed)
	assert.Zero(t, remaining)
}

func TestRedisRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter, _ := newLimiter(t, 1, time.Minute)
	ctx := context.Background()

	allowed, _ := limiter.Allow(ctx, "client-a")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow(ctx, "client-a")
	assert.False(t, allowed)

	allowed, _ = limiter.Allow(ctx, "client-b")
	assert.True(t, allowed)
}

func TestRedisRateLimiter_WindowResets(t *testing.T) {
	limiter, s := newLimiter(t, 1, time.Minute)
	ctx := context.Background()

	allowed, _ := limiter.Allow(ctx, "client-a")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow(ctx, "client-a")
	assert.False(t, allowed)

	s.FastForward(time.Minute + time.Second)

	allowed, _ = limiter.Allow(ctx, "client-a")
	assert.True(t, allowed)
}

func TestRedisRateLimiter_OutageFallsBackLocally(t *testing.T) {
	limiter, s := newLimiter(t, 2, time.Minute)
	ctx := context.Background()

	s.Close()

	// The local bucket starts full, so the limit still applies.
	allowed, _ := limiter.Allow(ctx, "client-a")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow(ctx, "client-a")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow(ctx, "client-a")
	assert.False(t, allowed)
}
