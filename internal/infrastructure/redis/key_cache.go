package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wrensec/keygate/internal/domain/service"
	"github.com/wrensec/keygate/pkg/constants"
)

type keyCache struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// NewKeyCache creates the cross-instance key cache: a hash for signed
// key→secret pairs and a set for simple keys. The backing database stays the
// system of record; this layer exists so cache misses on one instance are
// served by writes made on another.
func NewKeyCache(client redis.UniversalClient, timeout time.Duration) service.SharedKeyCache {
	if timeout <= 0 {
		timeout = constants.DefaultStoreTimeout
	}
	return &keyCache{client: client, timeout: timeout}
}

func (c *keyCache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// ================================================================================
// Signed key→secret hash
// ================================================================================

func (c *keyCache) GetSecret(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	secret, err := c.client.HGet(ctx, constants.SignedKeyHash, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return secret, true, nil
}

func (c *keyCache) SetSecret(ctx context.Context, key, secret string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return c.client.HSet(ctx, constants.SignedKeyHash, key, secret).Err()
}

func (c *keyCache) DeleteSecret(ctx context.Context, key string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return c.client.HDel(ctx, constants.SignedKeyHash, key).Err()
}

// ReplaceSecrets atomically swaps the whole hash for the given mapping.
// Used by LoadKeys so a bulk reload cannot leave revoked keys behind.
func (c *keyCache) ReplaceSecrets(ctx context.Context, secrets map[string]string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, constants.SignedKeyHash)
	if len(secrets) > 0 {
		flat := make([]interface{}, 0, len(secrets)*2)
		for k, v := range secrets {
			flat = append(flat, k, v)
		}
		pipe.HSet(ctx, constants.SignedKeyHash, flat...)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ================================================================================
// Simple key set
// ================================================================================

func (c *keyCache) HasSimpleKey(ctx context.Context, key string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return c.client.SIsMember(ctx, constants.SimpleKeySet, key).Result()
}

func (c *keyCache) AddSimpleKey(ctx context.Context, key string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return c.client.SAdd(ctx, constants.SimpleKeySet, key).Err()
}

func (c *keyCache) RemoveSimpleKey(ctx context.Context, key string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return c.client.SRem(ctx, constants.SimpleKeySet, key).Err()
}

// ReplaceSimpleKeys atomically swaps the whole set for the given keys.
func (c *keyCache) ReplaceSimpleKeys(ctx context.Context, keys []string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, constants.SimpleKeySet)
	if len(keys) > 0 {
		members := make([]interface{}, len(keys))
		for i, k := range keys {
			members[i] = k
		}
		pipe.SAdd(ctx, constants.SimpleKeySet, members...)
	}
	_, err := pipe.Exec(ctx)
	return err
}
