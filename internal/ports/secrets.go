package ports

import "context"

// Secret is the payload of a KV read; for KV v2 it holds "data" and "metadata".
type Secret struct {
	Data map[string]any
}

type SecretsRepository interface {
	SetToken(token string)
	LoginAppRole(ctx context.Context, roleID, secretID string) (string, error)
	GetSecrets(ctx context.Context, path string) (*Secret, error)
}
