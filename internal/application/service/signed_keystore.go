package service

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/wrensec/keygate/internal/domain/models"
	"github.com/wrensec/keygate/internal/domain/repository"
	"github.com/wrensec/keygate/internal/domain/service"
	"github.com/wrensec/keygate/internal/infrastructure/crypto"
	"github.com/wrensec/keygate/pkg/constants"
	"github.com/wrensec/keygate/pkg/errors"
	"github.com/wrensec/keygate/pkg/logger"
)

// SignedKeyStore verifies the full signing protocol: key resolution, replay
// protection, and signature comparison. Validation is hot-path code; secrets
// resolve local mirror first, then the shared cache, then the database.
type SignedKeyStore struct {
	repo    repository.AccessKeyRepository
	cache   service.SharedKeyCache
	guard   *service.ReplayGuard
	secrets service.SecretSource
	local   *gocache.Cache
	log     logger.Logger
}

// NewSignedKeyStore creates a signed key store. secrets may be nil; when set
// it takes precedence over the secret column of the backing database.
func NewSignedKeyStore(
	repo repository.AccessKeyRepository,
	cache service.SharedKeyCache,
	guard *service.ReplayGuard,
	secrets service.SecretSource,
	localTTL time.Duration,
	log logger.Logger,
) *SignedKeyStore {
	return &SignedKeyStore{
		repo:    repo,
		cache:   cache,
		guard:   guard,
		secrets: secrets,
		local:   gocache.New(localTTL, 2*localTTL),
		log:     log.WithComponent("signed-keystore"),
	}
}

// LoadKeys replaces the shared secret map with the full registered set.
func (s *SignedKeyStore) LoadKeys(ctx context.Context) error {
	records, err := s.repo.ListByStrategy(ctx, constants.StrategySigned)
	if err != nil {
		return errors.Wrap(err, constants.ErrCodeTemporarilyUnavailable, "loading signed keys")
	}

	secrets := make(map[string]string, len(records))
	for _, record := range records {
		secrets[record.Key] = record.Secret
	}
	if err := s.cache.ReplaceSecrets(ctx, secrets); err != nil {
		return errors.Wrap(err, constants.ErrCodeTemporarilyUnavailable, "replacing shared secret map")
	}

	s.local.Flush()
	for key, secret := range secrets {
		s.local.SetDefault(key, secret)
	}
	s.log.Info(ctx, "signed keys loaded", logger.Int("count", len(records)))
	return nil
}

// ValidateKey runs the signed protocol end to end. It never returns an
// error; every fault resolves to a deny with a classifying reason.
func (s *SignedKeyStore) ValidateKey(ctx context.Context, key string, req *models.ValidationRequest) (valid bool, reason models.Reason) {
	// The guard below has already consumed the nonce by the time the
	// signature is compared; a panic past that point must still deny.
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(ctx, "panic during signed validation", nil, logger.Any("panic", r))
			valid, reason = false, models.ReasonInternalError
		}
	}()

	if key == "" {
		return false, models.ReasonMissingCredential
	}
	if req == nil {
		return false, models.ReasonInternalError
	}

	secret, reason := s.resolveSecret(ctx, key)
	if reason != "" {
		return false, reason
	}

	alg, ok := models.ParseAlgorithm(req.Algorithm)
	if !ok {
		return false, models.ReasonUnsupportedAlgorithm
	}

	if reason := s.guard.Check(ctx, req); reason != "" {
		return false, reason
	}

	canonical := crypto.Canonicalize(req.Params)
	match, err := crypto.Verify(alg, canonical, secret, req.Signature)
	if err != nil {
		return false, models.ReasonUnsupportedAlgorithm
	}
	if !match {
		return false, models.ReasonSignatureMismatch
	}
	return true, ""
}

// resolveSecret walks the cache hierarchy for the signing secret of key.
func (s *SignedKeyStore) resolveSecret(ctx context.Context, key string) (string, models.Reason) {
	if cached, hit := s.local.Get(key); hit {
		return cached.(string), ""
	}

	secret, found, err := s.cache.GetSecret(ctx, key)
	if err != nil {
		s.log.Warn(ctx, "shared key cache unavailable, falling back to database",
			logger.Error(err))
	} else if found {
		s.local.SetDefault(key, secret)
		return secret, ""
	}

	record, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.IsNotFound(err) {
			return "", models.ReasonUnknownKey
		}
		s.log.Error(ctx, "key lookup failed", err, logger.String("api_key", logger.MaskKey(key)))
		return "", models.ReasonStoreUnavailable
	}
	if !record.IsSigned() {
		return "", models.ReasonUnknownKey
	}

	secret = record.Secret
	if s.secrets != nil {
		fetched, err := s.secrets.FetchSecret(ctx, key)
		if err != nil {
			s.log.Warn(ctx, "secret source unavailable, using stored secret",
				logger.Error(err), logger.String("api_key", logger.MaskKey(key)))
		} else {
			secret = fetched
		}
	}

	s.local.SetDefault(key, secret)
	if err := s.cache.SetSecret(ctx, key, secret); err != nil {
		s.log.Warn(ctx, "failed to backfill shared key cache", logger.Error(err))
	}
	return secret, ""
}

// AddKey registers a new signed key with its secret.
func (s *SignedKeyStore) AddKey(ctx context.Context, key, secret string) error {
	if key == "" || secret == "" {
		return errors.ErrInvalidRequest("key and secret must not be empty")
	}
	if err := s.repo.Create(ctx, &models.AccessKey{
		Key:      key,
		Secret:   secret,
		Strategy: constants.StrategySigned,
	}); err != nil {
		return err
	}
	if err := s.cache.SetSecret(ctx, key, secret); err != nil {
		return errors.Wrap(err, constants.ErrCodeTemporarilyUnavailable, "publishing key to shared cache")
	}
	s.local.SetDefault(key, secret)
	return nil
}

// RemoveKey deletes a key everywhere. The shared cache delete must succeed so
// revocation takes effect across instances.
func (s *SignedKeyStore) RemoveKey(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		return err
	}
	s.local.Delete(key)
	if err := s.cache.DeleteSecret(ctx, key); err != nil {
		return errors.Wrap(err, constants.ErrCodeTemporarilyUnavailable, "revoking key in shared cache")
	}
	return nil
}

// UpdateKey rotates the secret of an existing signed key. Requests signed
// with the old secret fail once the caches converge.
func (s *SignedKeyStore) UpdateKey(ctx context.Context, key, newSecret string) error {
	if newSecret == "" {
		return errors.ErrInvalidRequest("new secret must not be empty")
	}
	if err := s.repo.UpdateSecret(ctx, key, newSecret); err != nil {
		return err
	}
	s.local.SetDefault(key, newSecret)
	if err := s.cache.SetSecret(ctx, key, newSecret); err != nil {
		return errors.Wrap(err, constants.ErrCodeTemporarilyUnavailable, "publishing rotated secret")
	}
	return nil
}
