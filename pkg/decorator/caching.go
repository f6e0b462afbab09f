package decorator

import (
	"context"
	"time"
)

type (
	// CacheStatus represents the status of a cache operation.
	CacheStatus string

	cacheStatusKey struct{}

	// CacheConfig holds configuration for the caching decorator.
	CacheConfig struct {
		Enabled bool
		TTL     time.Duration
	}

	// CacheGetter retrieves items from cache.
	CacheGetter[Q Query, R Result] interface {
		Get(ctx context.Context, query Q) (R, bool, error)
	}

	// CacheSetter stores items in cache.
	CacheSetter[Q Query, R Result] interface {
		Set(ctx context.Context, query Q, result R, ttl time.Duration) error
	}

	// Cache combines getter and setter operations.
	Cache[Q Query, R Result] interface {
		CacheGetter[Q, R]
		CacheSetter[Q, R]
	}

	// TTLResolver is implemented by caches whose expiry depends on the query.
	TTLResolver[Q Query] interface {
		TTLFor(query Q, fallback time.Duration) time.Duration
	}

	queryCachingDecorator[Q Query, R Result] struct {
		base   QueryHandler[Q, R]
		cache  Cache[Q, R]
		config CacheConfig
	}
)

const (
	CacheStatusHit    CacheStatus = "HIT"
	CacheStatusMiss   CacheStatus = "MISS"
	CacheStatusBypass CacheStatus = "BYPASS"
	CacheStatusError  CacheStatus = "ERROR"
)

// TrackCacheStatus returns a context the caching decorator reports into and a
// function reading the reported status. The status is BYPASS until reported.
func TrackCacheStatus(ctx context.Context) (context.Context, func() CacheStatus) {
	status := CacheStatusBypass

	return context.WithValue(ctx, cacheStatusKey{}, &status), func() CacheStatus {
		return status
	}
}

func reportCacheStatus(ctx context.Context, status CacheStatus) {
	if holder, ok := ctx.Value(cacheStatusKey{}).(*CacheStatus); ok {
		*holder = status
	}
}

// NewQueryCachingDecorator creates a new caching decorator for queries.
func NewQueryCachingDecorator[Q Query, R Result](
	base QueryHandler[Q, R],
	cache Cache[Q, R],
	config CacheConfig,
) QueryHandler[Q, R] {
	return queryCachingDecorator[Q, R]{
		base:   base,
		cache:  cache,
		config: config,
	}
}

func (d queryCachingDecorator[Q, R]) Execute(ctx context.Context, query Q) (R, error) {
	var zero R

	if !d.config.Enabled || d.cache == nil {
		reportCacheStatus(ctx, CacheStatusBypass)

		return d.base.Execute(ctx, query)
	}

	cached, hit, err := d.cache.Get(ctx, query)
	if err == nil && hit {
		reportCacheStatus(ctx, CacheStatusHit)

		return cached, nil
	}

	result, err := d.base.Execute(ctx, query)
	if err != nil {
		reportCacheStatus(ctx, CacheStatusMiss)

		return zero, err
	}

	ttl := d.config.TTL
	if resolver, ok := d.cache.(TTLResolver[Q]); ok {
		ttl = resolver.TTLFor(query, ttl)
	}

	if err := d.cache.Set(context.WithoutCancel(ctx), query, result, ttl); err != nil {
		reportCacheStatus(ctx, CacheStatusError)

		return result, nil
	}

	reportCacheStatus(ctx, CacheStatusMiss)

	return result, nil
}
