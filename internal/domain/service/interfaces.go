// Package service defines the domain service contracts of the keygate
// subsystem: key stores, replay protection, audit emission, and secret
// resolution. Infrastructure packages provide the implementations.
package service

import (
	"context"
	"time"

	"github.com/wrensec/keygate/internal/domain/models"
)

// KeyStore is the contract both key-store variants implement. The simple
// variant ignores secrets and signatures; the signed variant verifies the
// full signing protocol inside ValidateKey.
type KeyStore interface {
	// LoadKeys bulk-loads all active keys from the backing store into the
	// caches. Called once at startup. A failure leaves the store in
	// degraded mode (validations miss the warm cache and fall through to
	// the backing store) but must not abort startup.
	LoadKeys(ctx context.Context) error

	// ValidateKey decides whether a presented key (and, for the signed
	// variant, its accompanying signature material in req) is valid. It
	// never returns an error: any internal fault resolves to a deny with a
	// classifying reason. The reason is empty on success.
	ValidateKey(ctx context.Context, key string, req *models.ValidationRequest) (bool, models.Reason)

	// AddKey writes a new key to the backing store and then to the caches.
	// The secret is empty for the simple variant.
	AddKey(ctx context.Context, key, secret string) error

	// RemoveKey deletes a key from the backing store and the caches.
	RemoveKey(ctx context.Context, key string) error

	// UpdateKey rotates the secret of an existing key. The simple variant
	// rejects this with an unsupported-operation error.
	UpdateKey(ctx context.Context, key, newSecret string) error
}

// NonceStore is the distributed single-use nonce registry. Consume must be
// atomic (one round trip) across all connected instances.
type NonceStore interface {
	// Consume reserves a nonce for ttl. It returns false if the nonce was
	// already consumed within its lifetime, true if this call reserved it.
	Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}

// SharedKeyCache is the cross-instance cache layer over the backing store.
// It holds the signed key→secret mapping and the simple key set.
type SharedKeyCache interface {
	GetSecret(ctx context.Context, key string) (string, bool, error)
	SetSecret(ctx context.Context, key, secret string) error
	DeleteSecret(ctx context.Context, key string) error
	ReplaceSecrets(ctx context.Context, secrets map[string]string) error

	HasSimpleKey(ctx context.Context, key string) (bool, error)
	AddSimpleKey(ctx context.Context, key string) error
	RemoveSimpleKey(ctx context.Context, key string) error
	ReplaceSimpleKeys(ctx context.Context, keys []string) error
}

// AuditService publishes audit events to an external observability
// collaborator. Emission failures are logged, never surfaced to requests.
type AuditService interface {
	LogEvent(ctx context.Context, event *models.AuditEvent) error
	Close() error
}

// SecretSource resolves signing secrets from an external secret manager.
// When configured, the signed key store prefers it over the secret column of
// the backing database.
type SecretSource interface {
	FetchSecret(ctx context.Context, key string) (string, error)
}
