package ports

import (
	"context"
	"time"
)

// InFlightGuard locks a submission key for as long as it is being processed.
type InFlightGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, acquired bool, err error)
	Release(ctx context.Context, key, token string) error
}
