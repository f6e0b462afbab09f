package queries_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/adapters/repos"
	"github.com/RG-Partners/soraai-chat/internal/bridge"
	"github.com/RG-Partners/soraai-chat/internal/cache"
	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/internal/ports"
	"github.com/RG-Partners/soraai-chat/internal/usecases/queries"
	"github.com/RG-Partners/soraai-chat/pkg/decorator"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/RG-Partners/soraai-chat/pkg/metrics/noop"
	"github.com/stretchr/testify/require"
	otelNoop "go.opentelemetry.io/otel/trace/noop"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, clock *fakeClock) *cache.Resilient {
	t.Helper()

	local := cache.NewLocalStore(0, cache.WithClock(clock.Now))
	t.Cleanup(local.Close)

	return cache.NewResilient(nil, local, cache.Options{}, cache.WithResilientClock(clock.Now))
}

type fakeSearch struct {
	mu      sync.Mutex
	queries []string
	opts    []ports.SearchOptions
	err     error
}

func (f *fakeSearch) Search(_ context.Context, query string, opts ports.SearchOptions) ([]model.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, query)
	f.opts = append(f.opts, opts)

	if f.err != nil {
		return nil, f.err
	}

	site := strings.Fields(query)[0]

	// Every query on a site returns the same two articles, one of them with
	// a differently cased URL.
	return []model.Article{
		{Title: "shared", URL: "https://" + site + "/shared"},
		{Title: "shared upper", URL: "HTTPS://" + strings.ToUpper(site) + "/SHARED "},
		{Title: query, URL: "https://" + site + "/" + strings.ReplaceAll(query, " ", "-")},
	}, nil
}

func (f *fakeSearch) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.queries)
}

var discoverSettings = config.Discover{
	CacheEnabled:    true,
	CacheTTL:        5 * time.Minute,
	PreviewCacheTTL: time.Minute,
	Engines:         []string{"bing news"},
	Language:        "en",
	Concurrency:     4,
}

func newDiscoverHandler(search *fakeSearch, c *cache.Resilient) queries.GetDiscoverFeedQueryHandler {
	return queries.NewGetDiscoverFeedQueryHandler(
		search,
		discoverSettings,
		repos.NewDiscoverCacheAdapter(c, discoverSettings),
		logger.NewTestLogger(),
		noop.NewMetricsClient(),
		otelNoop.NewTracerProvider(),
	)
}

func TestDiscover_NormalFansOutAndDedupes(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	search := &fakeSearch{}
	handler := newDiscoverHandler(search, newTestCache(t, clock))

	ctx, status := decorator.TrackCacheStatus(t.Context())

	feed, err := handler.Execute(ctx, queries.GetDiscoverFeedQuery{Topic: "policy-legislation", Mode: model.DiscoverNormal})
	require.NoError(t, err)
	require.Equal(t, decorator.CacheStatusMiss, status())

	topic := model.DiscoverTopics["policy-legislation"]
	pairs := len(topic.Links) * len(topic.Queries)
	require.Equal(t, pairs, search.calls())

	// One shared article per site plus one per pair.
	require.Len(t, feed.Blogs, len(topic.Links)+pairs)

	seen := map[string]bool{}
	for _, article := range feed.Blogs {
		key := strings.ToLower(strings.TrimSpace(article.URL))
		require.False(t, seen[key], "duplicate %s", key)
		seen[key] = true
	}

	for _, opts := range search.opts {
		require.Equal(t, ports.SearchOptions{Engines: []string{"bing news"}, Language: "en", PageNo: 1}, opts)
	}

	require.Contains(t, search.queries, "site:irs.gov/newsroom IRS guidance update")
}

func TestDiscover_CachesPerModeWithTheirOwnExpiry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	search := &fakeSearch{}
	handler := newDiscoverHandler(search, newTestCache(t, clock))

	preview := queries.GetDiscoverFeedQuery{Topic: "advisory-strategy", Mode: model.DiscoverPreview}
	normal := queries.GetDiscoverFeedQuery{Topic: "advisory-strategy", Mode: model.DiscoverNormal}

	feed, err := handler.Execute(t.Context(), preview)
	require.NoError(t, err)
	require.Len(t, feed.Blogs, 3)
	require.Equal(t, 1, search.calls())

	_, err = handler.Execute(t.Context(), normal)
	require.NoError(t, err)
	require.Equal(t, 17, search.calls())

	ctx, status := decorator.TrackCacheStatus(t.Context())
	_, err = handler.Execute(ctx, preview)
	require.NoError(t, err)
	require.Equal(t, decorator.CacheStatusHit, status())
	require.Equal(t, 17, search.calls())

	clock.Advance(90 * time.Second)

	_, err = handler.Execute(t.Context(), preview)
	require.NoError(t, err)
	require.Equal(t, 18, search.calls())

	ctx, status = decorator.TrackCacheStatus(t.Context())
	_, err = handler.Execute(ctx, normal)
	require.NoError(t, err)
	require.Equal(t, decorator.CacheStatusHit, status())
	require.Equal(t, 18, search.calls())
}

func TestDiscover_DefaultAndUnknownTopics(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	search := &fakeSearch{}
	handler := newDiscoverHandler(search, newTestCache(t, clock))

	_, err := handler.Execute(t.Context(), queries.GetDiscoverFeedQuery{Mode: model.DiscoverPreview})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(search.queries[0], "site:"))

	_, err = handler.Execute(t.Context(), queries.GetDiscoverFeedQuery{Topic: "horoscopes", Mode: model.DiscoverNormal})
	require.ErrorIs(t, err, model.ErrUnknownTopic)

	require.Equal(t, "discover:normal:policy-legislation", queries.GetDiscoverFeedQuery{Mode: model.DiscoverNormal}.CacheKey())
}

func TestDiscover_SearchFailureIsNotCached(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	search := &fakeSearch{err: errors.New("searxng unavailable")}
	handler := newDiscoverHandler(search, newTestCache(t, clock))

	query := queries.GetDiscoverFeedQuery{Topic: "policy-legislation", Mode: model.DiscoverPreview}

	_, err := handler.Execute(t.Context(), query)
	require.Error(t, err)

	search.mu.Lock()
	search.err = nil
	search.mu.Unlock()

	feed, err := handler.Execute(t.Context(), query)
	require.NoError(t, err)
	require.NotEmpty(t, feed.Blogs)
	require.Equal(t, 2, search.calls())
}

type fakeSuggester struct {
	mu        sync.Mutex
	histories [][][2]string
	text      string
}

func (f *fakeSuggester) Answer(context.Context, model.GenerationRequest) (bridge.Source, error) {
	return nil, errors.New("not used")
}

func (f *fakeSuggester) Suggest(_ context.Context, history [][2]string, _ model.ModelRef) (bridge.Source, error) {
	f.mu.Lock()
	f.histories = append(f.histories, history)
	f.mu.Unlock()

	emitter := bridge.NewEmitter(4)

	go func() {
		defer emitter.Close()

		for _, line := range strings.SplitAfter(f.text, "\n") {
			if !emitter.Emit(bridge.Fragment{Text: line}) {
				return
			}
		}

		emitter.Emit(bridge.Done{})
	}()

	return emitter, nil
}

func (f *fakeSuggester) Ping(context.Context) error {
	return nil
}

func (f *fakeSuggester) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.histories)
}

func TestSuggestions_GeneratesAndCaches(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	agent := &fakeSuggester{text: "<suggestions>\n- Is a Roth conversion taxable?\n- What is the deadline?\n</suggestions>"}

	handler := queries.NewGetSuggestionsQueryHandler(
		agent,
		repos.NewSuggestionsCacheAdapter(newTestCache(t, clock)),
		decorator.CacheConfig{Enabled: true, TTL: 3 * time.Minute},
		logger.NewTestLogger(),
		noop.NewMetricsClient(),
		otelNoop.NewTracerProvider(),
	)

	query := queries.GetSuggestionsQuery{
		UserID: "user-1",
		ChatID: "c-1",
		History: []model.HistoryTurn{
			{Role: "human", Content: "How are IRAs taxed?"},
			{Role: model.RoleSource, Content: "ignored"},
			{Role: model.RoleAssistant, Content: "It depends."},
		},
	}

	result, err := handler.Execute(t.Context(), query)
	require.NoError(t, err)
	require.Equal(t, []string{"Is a Roth conversion taxable?", "What is the deadline?"}, result.Suggestions)
	require.Equal(t, [][2]string{{"user", "How are IRAs taxed?"}, {"assistant", "It depends."}}, agent.histories[0])

	ctx, status := decorator.TrackCacheStatus(t.Context())
	_, err = handler.Execute(ctx, query)
	require.NoError(t, err)
	require.Equal(t, decorator.CacheStatusHit, status())
	require.Equal(t, 1, agent.calls())

	query.History = append(query.History, model.HistoryTurn{Role: model.RoleUser, Content: "And 401k?"})
	_, err = handler.Execute(t.Context(), query)
	require.NoError(t, err)
	require.Equal(t, 2, agent.calls())

	clock.Advance(4 * time.Minute)
	_, err = handler.Execute(t.Context(), query)
	require.NoError(t, err)
	require.Equal(t, 3, agent.calls())
}

func TestSuggestions_CacheKeyFallsBackToUser(t *testing.T) {
	t.Parallel()

	withChat := queries.GetSuggestionsQuery{UserID: "user-1", ChatID: "c-1"}
	withoutChat := queries.GetSuggestionsQuery{UserID: "user-1"}

	require.True(t, strings.HasPrefix(withChat.CacheKey(), "suggestions:c-1:"))
	require.True(t, strings.HasPrefix(withoutChat.CacheKey(), "suggestions:user-1:"))
}

type fakeHealthChecker struct{}

func (fakeHealthChecker) Liveness(context.Context) (*model.LivenessReport, error) {
	return &model.LivenessReport{Status: model.HealthStatusOK}, nil
}

func (fakeHealthChecker) Readiness(context.Context) (*model.ReadinessReport, error) {
	return &model.ReadinessReport{Status: model.HealthStatusDegraded}, nil
}

func (fakeHealthChecker) Health(context.Context) (*model.HealthReport, error) {
	return nil, model.ErrServiceUnavailable
}

func TestHealthQueries(t *testing.T) {
	t.Parallel()

	log := logger.NewTestLogger()
	mc := noop.NewMetricsClient()
	tp := otelNoop.NewTracerProvider()

	liveness, err := queries.NewFetchLivenessQueryHandler(fakeHealthChecker{}, log, mc, tp).Execute(t.Context(), queries.FetchLivenessQuery{})
	require.NoError(t, err)
	require.Equal(t, model.HealthStatusOK, liveness.Status)

	readiness, err := queries.NewFetchReadinessQueryHandler(fakeHealthChecker{}, log, mc, tp).Execute(t.Context(), queries.FetchReadinessQuery{})
	require.NoError(t, err)
	require.Equal(t, model.HealthStatusDegraded, readiness.Status)

	_, err = queries.NewFetchHealthReportQueryHandler(fakeHealthChecker{}, log, mc, tp).Execute(t.Context(), queries.FetchHealthReportQuery{})
	require.ErrorIs(t, err, model.ErrServiceUnavailable)
}
