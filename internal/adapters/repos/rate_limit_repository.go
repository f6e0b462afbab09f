package repos

import (
	"context"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/infrastructure"
	"github.com/throttled/throttled/v2"
)

const gcraKeyPrefix = "gcra:"

// GCRAStore implements throttled.GCRAStoreCtx on KeyDB so token buckets are
// shared by every instance.
type GCRAStore struct {
	client *infrastructure.KeydbClient
	prefix string
}

var _ throttled.GCRAStoreCtx = (*GCRAStore)(nil)

func NewGCRAStore(client *infrastructure.KeydbClient) *GCRAStore {
	return &GCRAStore{
		client: client,
		prefix: gcraKeyPrefix,
	}
}

func (s *GCRAStore) GetWithTime(ctx context.Context, key string) (int64, time.Time, error) {
	return s.client.GetInt64WithTime(ctx, s.prefix+key)
}

func (s *GCRAStore) SetIfNotExistsWithTTL(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	return s.client.SetInt64NX(ctx, s.prefix+key, value, ttl)
}

func (s *GCRAStore) CompareAndSwapWithTTL(ctx context.Context, key string, old, new int64, ttl time.Duration) (bool, error) {
	return s.client.CompareAndSwapInt64(ctx, s.prefix+key, old, new, ttl)
}
