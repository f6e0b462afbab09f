package decorator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RG-Partners/soraai-chat/pkg/decorator"
	"github.com/stretchr/testify/require"
)

type testQuery struct {
	ID      string
	Preview bool
}

type testResult struct {
	Value string
}

type mockCache struct {
	mu      sync.Mutex
	data    map[string]testResult
	ttls    map[string]time.Duration
	getCnt  int
	setCnt  int
	getErr  error
	setErr  error
}

func newMockCache() *mockCache {
	return &mockCache{
		data: make(map[string]testResult),
		ttls: make(map[string]time.Duration),
	}
}

func (m *mockCache) Get(_ context.Context, query testQuery) (testResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getCnt++

	if m.getErr != nil {
		return testResult{}, false, m.getErr
	}

	result, ok := m.data[query.ID]

	return result, ok, nil
}

func (m *mockCache) Set(_ context.Context, query testQuery, result testResult, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setCnt++

	if m.setErr != nil {
		return m.setErr
	}

	m.data[query.ID] = result
	m.ttls[query.ID] = ttl

	return nil
}

func (m *mockCache) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.getCnt, m.setCnt
}

// previewCache shortens the expiry of preview queries.
type previewCache struct {
	*mockCache
}

func (previewCache) TTLFor(query testQuery, fallback time.Duration) time.Duration {
	if query.Preview {
		return time.Second
	}

	return fallback
}

type mockQueryHandler struct {
	mu        sync.Mutex
	callCount int
	result    testResult
	err       error
}

func (h *mockQueryHandler) Execute(_ context.Context, _ testQuery) (testResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.callCount++

	return h.result, h.err
}

func (h *mockQueryHandler) CallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.callCount
}

func TestQueryCachingDecorator(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		enabled       bool
		nilCache      bool
		seed          map[string]testResult
		getErr        error
		setErr        error
		handlerErr    error
		expectedValue string
		expectedErr   error
		expectedCalls int
		expectedSets  int
		expectedState decorator.CacheStatus
	}{
		{
			name:          "serves a cached value without calling the handler",
			enabled:       true,
			seed:          map[string]testResult{"q": {Value: "cached"}},
			expectedValue: "cached",
			expectedState: decorator.CacheStatusHit,
		},
		{
			name:          "computes and stores on a miss",
			enabled:       true,
			expectedValue: "fresh",
			expectedCalls: 1,
			expectedSets:  1,
			expectedState: decorator.CacheStatusMiss,
		},
		{
			name:          "bypasses a disabled cache",
			enabled:       false,
			seed:          map[string]testResult{"q": {Value: "cached"}},
			expectedValue: "fresh",
			expectedCalls: 1,
			expectedState: decorator.CacheStatusBypass,
		},
		{
			name:          "bypasses a nil cache",
			enabled:       true,
			nilCache:      true,
			expectedValue: "fresh",
			expectedCalls: 1,
			expectedState: decorator.CacheStatusBypass,
		},
		{
			name:          "treats a get error as a miss",
			enabled:       true,
			getErr:        errors.New("get failed"),
			expectedValue: "fresh",
			expectedCalls: 1,
			expectedSets:  1,
			expectedState: decorator.CacheStatusMiss,
		},
		{
			name:          "reports a set error but still returns the result",
			enabled:       true,
			setErr:        errors.New("set failed"),
			expectedValue: "fresh",
			expectedCalls: 1,
			expectedSets:  1,
			expectedState: decorator.CacheStatusError,
		},
		{
			name:          "does not store handler errors",
			enabled:       true,
			handlerErr:    errors.New("handler failed"),
			expectedErr:   errors.New("handler failed"),
			expectedCalls: 1,
			expectedState: decorator.CacheStatusMiss,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cache := newMockCache()
			cache.getErr = tc.getErr
			cache.setErr = tc.setErr

			for k, v := range tc.seed {
				cache.data[k] = v
			}

			handler := &mockQueryHandler{result: testResult{Value: "fresh"}, err: tc.handlerErr}

			var c decorator.Cache[testQuery, testResult] = cache
			if tc.nilCache {
				c = nil
			}

			decorated := decorator.NewQueryCachingDecorator[testQuery, testResult](
				handler,
				c,
				decorator.CacheConfig{Enabled: tc.enabled, TTL: time.Minute},
			)

			ctx, status := decorator.TrackCacheStatus(context.Background())
			result, err := decorated.Execute(ctx, testQuery{ID: "q"})

			if tc.expectedErr != nil {
				require.EqualError(t, err, tc.expectedErr.Error())
			} else {
				require.NoError(t, err)
				require.Equal(t, tc.expectedValue, result.Value)
			}

			_, sets := cache.counts()
			require.Equal(t, tc.expectedCalls, handler.CallCount())
			require.Equal(t, tc.expectedSets, sets)
			require.Equal(t, tc.expectedState, status())
		})
	}
}

func TestQueryCachingDecorator_TTLResolver(t *testing.T) {
	t.Parallel()

	cache := previewCache{mockCache: newMockCache()}
	handler := &mockQueryHandler{result: testResult{Value: "fresh"}}

	decorated := decorator.NewQueryCachingDecorator[testQuery, testResult](
		handler,
		cache,
		decorator.CacheConfig{Enabled: true, TTL: time.Minute},
	)

	_, err := decorated.Execute(context.Background(), testQuery{ID: "normal"})
	require.NoError(t, err)

	_, err = decorated.Execute(context.Background(), testQuery{ID: "preview", Preview: true})
	require.NoError(t, err)

	require.Equal(t, time.Minute, cache.ttls["normal"])
	require.Equal(t, time.Second, cache.ttls["preview"])
}

func TestTrackCacheStatus_Default(t *testing.T) {
	t.Parallel()

	_, status := decorator.TrackCacheStatus(context.Background())
	require.Equal(t, decorator.CacheStatusBypass, status())
}
