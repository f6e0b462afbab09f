package repos

import (
	"context"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/cache"
	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/internal/usecases/queries"
)

type (
	// SuggestionsCacheAdapter stores suggestion lists in the resilient cache.
	SuggestionsCacheAdapter struct {
		cache *cache.Resilient
	}

	// DiscoverCacheAdapter stores discover feeds in the resilient cache with a
	// shorter expiry for previews.
	DiscoverCacheAdapter struct {
		cache    *cache.Resilient
		settings config.Discover
	}
)

func NewSuggestionsCacheAdapter(c *cache.Resilient) *SuggestionsCacheAdapter {
	return &SuggestionsCacheAdapter{cache: c}
}

func (a *SuggestionsCacheAdapter) Get(ctx context.Context, query queries.GetSuggestionsQuery) (*model.Suggestions, bool, error) {
	suggestions, ok := cache.GetJSON[model.Suggestions](ctx, a.cache, query.CacheKey())
	if !ok {
		return nil, false, nil
	}

	return &suggestions, true, nil
}

func (a *SuggestionsCacheAdapter) Set(ctx context.Context, query queries.GetSuggestionsQuery, result *model.Suggestions, ttl time.Duration) error {
	cache.SetJSON(ctx, a.cache, query.CacheKey(), result, ttl)

	return nil
}

func NewDiscoverCacheAdapter(c *cache.Resilient, settings config.Discover) *DiscoverCacheAdapter {
	return &DiscoverCacheAdapter{cache: c, settings: settings}
}

func (a *DiscoverCacheAdapter) Get(ctx context.Context, query queries.GetDiscoverFeedQuery) (*model.DiscoverFeed, bool, error) {
	feed, ok := cache.GetJSON[model.DiscoverFeed](ctx, a.cache, query.CacheKey())
	if !ok {
		return nil, false, nil
	}

	return &feed, true, nil
}

func (a *DiscoverCacheAdapter) Set(ctx context.Context, query queries.GetDiscoverFeedQuery, result *model.DiscoverFeed, ttl time.Duration) error {
	cache.SetJSON(ctx, a.cache, query.CacheKey(), result, ttl)

	return nil
}

func (a *DiscoverCacheAdapter) TTLFor(query queries.GetDiscoverFeedQuery, fallback time.Duration) time.Duration {
	if query.Mode == model.DiscoverPreview && a.settings.PreviewCacheTTL > 0 {
		return a.settings.PreviewCacheTTL
	}

	return fallback
}
