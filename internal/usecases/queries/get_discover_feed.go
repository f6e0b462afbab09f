package queries

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/RG-Partners/soraai-chat/internal/cache"
	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/internal/ports"
	"github.com/RG-Partners/soraai-chat/pkg/decorator"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/RG-Partners/soraai-chat/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type (
	GetDiscoverFeedQuery struct {
		Topic string
		Mode  model.DiscoverMode
	}

	GetDiscoverFeedQueryHandler = decorator.QueryHandler[GetDiscoverFeedQuery, *model.DiscoverFeed]

	getDiscoverFeedQueryHandler struct {
		search   ports.SearchEngine
		settings config.Discover
		intN     func(n int) int
	}
)

// TopicName falls back to the default topic when none was asked for.
func (q GetDiscoverFeedQuery) TopicName() string {
	if q.Topic == "" {
		return model.DefaultDiscoverTopic
	}

	return q.Topic
}

func (q GetDiscoverFeedQuery) CacheKey() string {
	return cache.DiscoverKey(string(q.Mode), q.TopicName())
}

func NewGetDiscoverFeedQueryHandler(
	search ports.SearchEngine,
	settings config.Discover,
	queryCache decorator.Cache[GetDiscoverFeedQuery, *model.DiscoverFeed],
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) GetDiscoverFeedQueryHandler {
	handler := decorator.ApplyQueryDecorators[GetDiscoverFeedQuery, *model.DiscoverFeed](
		getDiscoverFeedQueryHandler{search: search, settings: settings, intN: rand.IntN},
		log,
		metricsClient,
		tracerProvider,
	)

	return decorator.NewQueryCachingDecorator[GetDiscoverFeedQuery, *model.DiscoverFeed](handler, queryCache, decorator.CacheConfig{
		Enabled: settings.CacheEnabled,
		TTL:     settings.CacheTTL,
	})
}

func (h getDiscoverFeedQueryHandler) Execute(ctx context.Context, query GetDiscoverFeedQuery) (*model.DiscoverFeed, error) {
	topic, ok := model.DiscoverTopics[query.TopicName()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownTopic, query.Topic)
	}

	if query.Mode == model.DiscoverPreview {
		q := "site:" + topic.Links[h.intN(len(topic.Links))] + " " + topic.Queries[h.intN(len(topic.Queries))]

		articles, err := h.search.Search(ctx, q, h.options())
		if err != nil {
			return nil, fmt.Errorf("searching discover preview: %w", err)
		}

		return &model.DiscoverFeed{Blogs: articles}, nil
	}

	articles, err := h.collect(ctx, topic)
	if err != nil {
		return nil, err
	}

	return &model.DiscoverFeed{Blogs: h.shuffle(dedupe(articles))}, nil
}

// collect searches every link and query pair; any failed search fails the feed.
func (h getDiscoverFeedQueryHandler) collect(ctx context.Context, topic model.DiscoverTopic) ([]model.Article, error) {
	queries := make([]string, 0, len(topic.Links)*len(topic.Queries))
	for _, link := range topic.Links {
		for _, q := range topic.Queries {
			queries = append(queries, "site:"+link+" "+q)
		}
	}

	results := make([][]model.Article, len(queries))
	opts := h.options()

	group, groupCtx := errgroup.WithContext(ctx)
	if h.settings.Concurrency > 0 {
		group.SetLimit(h.settings.Concurrency)
	}

	for i, q := range queries {
		group.Go(func() error {
			articles, err := h.search.Search(groupCtx, q, opts)
			if err != nil {
				return fmt.Errorf("searching %q: %w", q, err)
			}

			results[i] = articles

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	var all []model.Article
	for _, articles := range results {
		all = append(all, articles...)
	}

	return all, nil
}

func (h getDiscoverFeedQueryHandler) options() ports.SearchOptions {
	return ports.SearchOptions{
		Engines:  h.settings.Engines,
		Language: h.settings.Language,
		PageNo:   1,
	}
}

func (h getDiscoverFeedQueryHandler) shuffle(articles []model.Article) []model.Article {
	for i := len(articles) - 1; i > 0; i-- {
		j := h.intN(i + 1)
		articles[i], articles[j] = articles[j], articles[i]
	}

	return articles
}

// dedupe keeps the first article per case insensitive URL.
func dedupe(articles []model.Article) []model.Article {
	seen := make(map[string]struct{}, len(articles))
	unique := make([]model.Article, 0, len(articles))

	for _, article := range articles {
		key := strings.ToLower(strings.TrimSpace(article.URL))
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		unique = append(unique, article)
	}

	return unique
}
