// Package ratelimit provides the per-key request limiter for guarded
// routes: a distributed fixed-window counter in Redis with a local token
// bucket fallback for Redis outages.
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket is a thread-safe token bucket. It backs the local fallback
// path when the shared counter is unreachable.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	rate       float64
	lastRefill time.Time
}

// NewTokenBucket creates a bucket holding capacity tokens refilled at rate
// tokens per second. The bucket starts full.
func NewTokenBucket(capacity, rate float64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		rate:       rate,
		lastRefill: time.Now(),
	}
}

// Allow consumes one token if available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.lastRefill = now

	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
}

// bucketPool keys local fallback buckets by api key.
type bucketPool struct {
	mu       sync.Mutex
	buckets  map[string]*TokenBucket
	capacity float64
	rate     float64
}

func newBucketPool(capacity, rate float64) *bucketPool {
	return &bucketPool{
		buckets:  make(map[string]*TokenBucket),
		capacity: capacity,
		rate:     rate,
	}
}

func (p *bucketPool) get(key string) *TokenBucket {
	p.mu.Lock()
	defer p.mu.Unlock()

	bucket, ok := p.buckets[key]
	if !ok {
		bucket = NewTokenBucket(p.capacity, p.rate)
		p.buckets[key] = bucket
	}
	return bucket
}
