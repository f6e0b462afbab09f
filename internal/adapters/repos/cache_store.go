package repos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/infrastructure"
)

// CacheStore is the network half of the resilient cache. Every key is
// namespaced under prefix so Clear and GetAll never touch foreign keys.
type CacheStore struct {
	client *infrastructure.KeydbClient
	prefix string
}

func NewCacheStore(client *infrastructure.KeydbClient, prefix string) *CacheStore {
	return &CacheStore{
		client: client,
		prefix: prefix,
	}
}

func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key)
	if err != nil {
		if errors.Is(err, infrastructure.ErrNotFound) {
			return nil, false, nil
		}

		return nil, false, err
	}

	return value, true, nil
}

func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, value, max(ttl, 0))
}

func (s *CacheStore) Has(ctx context.Context, key string) (bool, error) {
	return s.client.Exists(ctx, s.prefix+key)
}

func (s *CacheStore) Delete(ctx context.Context, key string) error {
	return s.client.Delete(ctx, s.prefix+key)
}

func (s *CacheStore) Clear(ctx context.Context) error {
	keys, err := s.client.ScanPrefix(ctx, s.prefix)
	if err != nil {
		return fmt.Errorf("listing cache keys: %w", err)
	}

	return s.client.Delete(ctx, keys...)
}

func (s *CacheStore) GetAll(ctx context.Context) (map[string][]byte, error) {
	keys, err := s.client.ScanPrefix(ctx, s.prefix)
	if err != nil {
		return nil, fmt.Errorf("listing cache keys: %w", err)
	}

	values, err := s.client.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}

	entries := make(map[string][]byte, len(values))
	for key, value := range values {
		entries[strings.TrimPrefix(key, s.prefix)] = value
	}

	return entries, nil
}
