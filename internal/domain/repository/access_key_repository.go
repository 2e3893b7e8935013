package repository

import (
	"context"

	"github.com/wrensec/keygate/internal/domain/models"
	"github.com/wrensec/keygate/pkg/constants"
)

// AccessKeyRepository defines the persistence contract for API keys. The
// backing database is the system of record; the key stores layer caches on
// top of it.
type AccessKeyRepository interface {
	// Create registers a new key. A duplicate key is a conflict error.
	Create(ctx context.Context, key *models.AccessKey) error

	// FindByKey returns the record for a key, or a not-found error.
	FindByKey(ctx context.Context, key string) (*models.AccessKey, error)

	// ListByStrategy returns all keys registered for a strategy.
	ListByStrategy(ctx context.Context, strategy constants.AuthStrategy) ([]*models.AccessKey, error)

	// UpdateSecret rotates the secret of an existing signed key.
	UpdateSecret(ctx context.Context, key, newSecret string) error

	// Delete removes a key. Deleting an unknown key is a not-found error.
	Delete(ctx context.Context, key string) error
}
