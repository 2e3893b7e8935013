// Package redis provides Redis-backed implementations of the keygate domain
// interfaces: the distributed nonce registry and the shared key cache. Redis
// is the single source of truth for replay state across all server
// instances; a per-instance nonce cache would defeat replay protection.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wrensec/keygate/internal/domain/service"
	"github.com/wrensec/keygate/pkg/constants"
)

type nonceStore struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// NewNonceStore creates the distributed nonce registry. Every Consume is a
// single SET NX PX round trip bounded by timeout, so two concurrent requests
// with the same nonce cannot both pass and a dead Redis cannot hang the
// request path.
func NewNonceStore(client redis.UniversalClient, timeout time.Duration) service.NonceStore {
	if timeout <= 0 {
		timeout = constants.DefaultStoreTimeout
	}
	return &nonceStore{client: client, timeout: timeout}
}

func (s *nonceStore) Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.client.SetNX(ctx, constants.NonceKeyPrefix+nonce, "1", ttl).Result()
}
