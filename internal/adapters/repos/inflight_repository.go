package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/infrastructure"
	"github.com/google/uuid"
)

// InFlightRepository holds a short lived lock per submission so a duplicate
// concurrent submission can be refused.
type InFlightRepository struct {
	client *infrastructure.KeydbClient
}

func NewInFlightRepository(client *infrastructure.KeydbClient) *InFlightRepository {
	return &InFlightRepository{client: client}
}

// Acquire returns the release token when the lock was taken.
func (r *InFlightRepository) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()

	acquired, err := r.client.Lock(ctx, key, token, ttl)
	if err != nil {
		return "", false, fmt.Errorf("acquiring in-flight lock: %w", err)
	}

	if !acquired {
		return "", false, nil
	}

	return token, true, nil
}

func (r *InFlightRepository) Release(ctx context.Context, key, token string) error {
	return r.client.Unlock(ctx, key, token)
}
