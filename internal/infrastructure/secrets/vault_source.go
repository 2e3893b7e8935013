// Package secrets resolves signing secrets from HashiCorp Vault. When
// enabled, Vault is the system of record for signed-key secrets; the secret
// column in the database is only a fallback.
package secrets

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"
	"github.com/wrensec/keygate/internal/config"
	"github.com/wrensec/keygate/internal/domain/service"
	"github.com/wrensec/keygate/pkg/logger"
)

// VaultSource reads signing secrets from a KV v2 mount. Secrets live at
// <mount>/data/keygate/<api-key> with a single "secret" field.
type VaultSource struct {
	client    *vault.Client
	mountPath string
	logger    logger.Logger
}

// NewVaultSource builds a Vault-backed secret source from configuration.
func NewVaultSource(cfg config.VaultConfig, log logger.Logger) (service.SecretSource, error) {
	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Address

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	mount := cfg.MountPath
	if mount == "" {
		mount = "secret"
	}
	return &VaultSource{
		client:    client,
		mountPath: mount,
		logger:    log.WithComponent("vault-secrets"),
	}, nil
}

// FetchSecret reads the signing secret for an api key.
func (s *VaultSource) FetchSecret(ctx context.Context, key string) (string, error) {
	path := fmt.Sprintf("%s/data/keygate/%s", s.mountPath, key)

	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		s.logger.Error(ctx, "failed to read secret from vault", err,
			logger.String("api_key", logger.MaskKey(key)))
		return "", fmt.Errorf("reading secret from vault: %w", err)
	}
	if secret == nil || secret.Data["data"] == nil {
		return "", fmt.Errorf("no secret stored for key %s", logger.MaskKey(key))
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected secret format at %s", path)
	}
	value, ok := data["secret"].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("secret field missing at %s", path)
	}
	return value, nil
}
