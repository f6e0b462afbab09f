package repos

import (
	"context"
	"errors"
	"fmt"

	"github.com/RG-Partners/soraai-chat/internal/ports"
	"github.com/hashicorp/vault/api"
)

const appRoleLoginPath = "auth/approle/login"

var errEmptySecret = errors.New("vault returned no secret")

type VaultRepository struct {
	client *api.Client
}

var _ ports.SecretsRepository = (*VaultRepository)(nil)

func NewVaultRepository(client *api.Client) *VaultRepository {
	return &VaultRepository{client: client}
}

func (r *VaultRepository) SetToken(token string) {
	r.client.SetToken(token)
}

func (r *VaultRepository) LoginAppRole(ctx context.Context, roleID, secretID string) (string, error) {
	secret, err := r.client.Logical().WriteWithContext(ctx, appRoleLoginPath, map[string]any{
		"role_id":   roleID,
		"secret_id": secretID,
	})
	if err != nil {
		return "", fmt.Errorf("approle login: %w", err)
	}

	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		return "", fmt.Errorf("approle login: %w", errEmptySecret)
	}

	return secret.Auth.ClientToken, nil
}

func (r *VaultRepository) GetSecrets(ctx context.Context, path string) (*ports.Secret, error) {
	secret, err := r.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("reading %s: %w", path, errEmptySecret)
	}

	return &ports.Secret{Data: secret.Data}, nil
}
