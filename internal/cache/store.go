// Package cache provides a TTL cache that prefers a shared network store
// and degrades to an in-process store while the network store is down.
package cache

import (
	"context"
	"time"
)

// NoExpiration stores an entry without a TTL. Any ttl <= 0 passed straight
// to a Store means the same thing.
const NoExpiration time.Duration = -1

// Store is a raw byte cache. Implementations report backend failures as
// errors; Resilient turns those into fallbacks.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Has(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	GetAll(ctx context.Context) (map[string][]byte, error)
}
