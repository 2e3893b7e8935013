// Package redis manages the shared Redis connection used by the nonce
// registry and the key cache. Standalone and sentinel deployments are
// supported; the client is constructed explicitly and injected into its
// consumers rather than reached through a process-wide singleton.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wrensec/keygate/internal/config"
	"github.com/wrensec/keygate/pkg/logger"
)

// Connection wraps the Redis client lifecycle.
type Connection struct {
	Client redis.UniversalClient
	log    logger.Logger
}

// NewConnection establishes the Redis connection and verifies it with a
// ping. The caller owns Close.
func NewConnection(cfg *config.RedisConfig, log logger.Logger) (*Connection, error) {
	log = log.WithComponent("redis")

	var client redis.UniversalClient
	if len(cfg.SentinelAddrs) > 0 {
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.SentinelMaster,
			SentinelAddrs: cfg.SentinelAddrs,
			Password:      cfg.Password,
			DB:            cfg.DB,
			PoolSize:      cfg.PoolSize,
			MinIdleConns:  cfg.MinIdleConns,
			DialTimeout:   cfg.DialTimeout,
			ReadTimeout:   cfg.ReadTimeout,
			WriteTimeout:  cfg.WriteTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info(ctx, "redis connection established",
		logger.String("host", cfg.Host),
		logger.Int("db", cfg.DB),
	)

	return &Connection{Client: client, log: log}, nil
}

// Ping checks connectivity, used by the readiness probe.
func (c *Connection) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Close releases the client and its pool.
func (c *Connection) Close() error {
	if err := c.Client.Close(); err != nil {
		c.log.Error(context.Background(), "failed to close redis connection", err)
		return err
	}
	return nil
}
