package postgres

import (
	"context"
	"errors"

	"github.com/wrensec/keygate/internal/domain/models"
	"github.com/wrensec/keygate/internal/domain/repository"
	"github.com/wrensec/keygate/pkg/constants"
	apperrors "github.com/wrensec/keygate/pkg/errors"
	"gorm.io/gorm"
)

// AccessKeyRepository is the GORM implementation of the AccessKeyRepository
// interface.
type AccessKeyRepository struct {
	db *gorm.DB
}

// NewAccessKeyRepository creates a new AccessKeyRepository.
func NewAccessKeyRepository(db *gorm.DB) repository.AccessKeyRepository {
	return &AccessKeyRepository{db: db}
}

// Create registers a new access key.
func (r *AccessKeyRepository) Create(ctx context.Context, key *models.AccessKey) error {
	err := r.db.WithContext(ctx).Create(key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrKeyExists(key.Key)
		}
		return apperrors.ErrStoreUnavailable("postgres", err)
	}
	return nil
}

// FindByKey returns the record for a key.
func (r *AccessKeyRepository) FindByKey(ctx context.Context, key string) (*models.AccessKey, error) {
	var record models.AccessKey
	err := r.db.WithContext(ctx).Where("access_key = ?", key).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrKeyNotFound(key)
		}
		return nil, apperrors.ErrStoreUnavailable("postgres", err)
	}
	return &record, nil
}

// ListByStrategy returns all keys for a strategy.
func (r *AccessKeyRepository) ListByStrategy(ctx context.Context, strategy constants.AuthStrategy) ([]*models.AccessKey, error) {
	var records []*models.AccessKey
	err := r.db.WithContext(ctx).Where("strategy = ?", strategy).Find(&records).Error
	if err != nil {
		return nil, apperrors.ErrStoreUnavailable("postgres", err)
	}
	return records, nil
}

// UpdateSecret rotates the secret of an existing key.
func (r *AccessKeyRepository) UpdateSecret(ctx context.Context, key, newSecret string) error {
	result := r.db.WithContext(ctx).
		Model(&models.AccessKey{}).
		Where("access_key = ?", key).
		Update("secret_key", newSecret)
	if result.Error != nil {
		return apperrors.ErrStoreUnavailable("postgres", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrKeyNotFound(key)
	}
	return nil
}

// Delete removes a key.
func (r *AccessKeyRepository) Delete(ctx context.Context, key string) error {
	result := r.db.WithContext(ctx).Where("access_key = ?", key).Delete(&models.AccessKey{})
	if result.Error != nil {
		return apperrors.ErrStoreUnavailable("postgres", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrKeyNotFound(key)
	}
	return nil
}
