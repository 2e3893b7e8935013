package service

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/wrensec/keygate/internal/domain/models"
	"github.com/wrensec/keygate/internal/domain/repository"
	"github.com/wrensec/keygate/internal/domain/service"
	"github.com/wrensec/keygate/pkg/constants"
	"github.com/wrensec/keygate/pkg/errors"
	"github.com/wrensec/keygate/pkg/logger"
)

// SimpleKeyStore admits a request when the presented key is registered,
// nothing more. The database is the system of record; the shared cache and a
// short-lived per-process mirror sit in front of it.
type SimpleKeyStore struct {
	repo  repository.AccessKeyRepository
	cache service.SharedKeyCache
	local *gocache.Cache
	log   logger.Logger
}

// NewSimpleKeyStore creates a simple key store. localTTL bounds how long a
// key decision lives in the per-process mirror before it is re-resolved.
func NewSimpleKeyStore(
	repo repository.AccessKeyRepository,
	cache service.SharedKeyCache,
	localTTL time.Duration,
	log logger.Logger,
) *SimpleKeyStore {
	return &SimpleKeyStore{
		repo:  repo,
		cache: cache,
		local: gocache.New(localTTL, 2*localTTL),
		log:   log.WithComponent("simple-keystore"),
	}
}

// LoadKeys replaces the shared key set with the full registered set. A
// failure leaves the store serving from the backing database alone.
func (s *SimpleKeyStore) LoadKeys(ctx context.Context) error {
	records, err := s.repo.ListByStrategy(ctx, constants.StrategySimple)
	if err != nil {
		return errors.Wrap(err, constants.ErrCodeTemporarilyUnavailable, "loading simple keys")
	}

	keys := make([]string, 0, len(records))
	for _, record := range records {
		keys = append(keys, record.Key)
	}
	if err := s.cache.ReplaceSimpleKeys(ctx, keys); err != nil {
		return errors.Wrap(err, constants.ErrCodeTemporarilyUnavailable, "replacing shared simple key set")
	}

	s.local.Flush()
	for _, key := range keys {
		s.local.SetDefault(key, true)
	}
	s.log.Info(ctx, "simple keys loaded", logger.Int("count", len(keys)))
	return nil
}

// ValidateKey reports whether the key is registered. It never returns an
// error; lookup faults resolve to a deny.
func (s *SimpleKeyStore) ValidateKey(ctx context.Context, key string, _ *models.ValidationRequest) (bool, models.Reason) {
	if key == "" {
		return false, models.ReasonMissingCredential
	}
	if _, hit := s.local.Get(key); hit {
		return true, ""
	}

	known, err := s.cache.HasSimpleKey(ctx, key)
	if err != nil {
		// Shared cache down: fall through to the system of record.
		s.log.Warn(ctx, "shared key cache unavailable, falling back to database",
			logger.Error(err))
	} else if known {
		s.local.SetDefault(key, true)
		return true, ""
	}

	record, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.IsNotFound(err) {
			return false, models.ReasonUnknownKey
		}
		s.log.Error(ctx, "key lookup failed", err, logger.String("api_key", logger.MaskKey(key)))
		return false, models.ReasonStoreUnavailable
	}
	if record.Strategy != constants.StrategySimple {
		return false, models.ReasonUnknownKey
	}

	s.local.SetDefault(key, true)
	if err := s.cache.AddSimpleKey(ctx, key); err != nil {
		s.log.Warn(ctx, "failed to backfill shared key cache", logger.Error(err))
	}
	return true, ""
}

// AddKey registers a new simple key. The secret argument is ignored.
func (s *SimpleKeyStore) AddKey(ctx context.Context, key, _ string) error {
	if key == "" {
		return errors.ErrInvalidRequest("key must not be empty")
	}
	if err := s.repo.Create(ctx, &models.AccessKey{
		Key:      key,
		Strategy: constants.StrategySimple,
	}); err != nil {
		return err
	}
	if err := s.cache.AddSimpleKey(ctx, key); err != nil {
		return errors.Wrap(err, constants.ErrCodeTemporarilyUnavailable, "publishing key to shared cache")
	}
	s.local.SetDefault(key, true)
	return nil
}

// RemoveKey deletes a key everywhere. The shared cache delete must succeed so
// revocation takes effect across instances.
func (s *SimpleKeyStore) RemoveKey(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		return err
	}
	s.local.Delete(key)
	if err := s.cache.RemoveSimpleKey(ctx, key); err != nil {
		return errors.Wrap(err, constants.ErrCodeTemporarilyUnavailable, "revoking key in shared cache")
	}
	return nil
}

// UpdateKey is not part of the simple contract; there is no secret to rotate.
func (s *SimpleKeyStore) UpdateKey(_ context.Context, _, _ string) error {
	return errors.ErrUnsupportedOperation("update key on simple store")
}
