package cache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/cache"
	"github.com/stretchr/testify/suite"
)

var errBackend = errors.New("connection refused")

// flakyStore delegates to a LocalStore unless failing is set. Like a network
// store it gives up on a done context.
type flakyStore struct {
	inner       *cache.LocalStore
	failing     atomic.Bool
	interrupted atomic.Bool

	mu      sync.Mutex
	calls   map[string]int
	lastTTL time.Duration
}

func newFlakyStore() *flakyStore {
	return &flakyStore{inner: cache.NewLocalStore(0), calls: map[string]int{}}
}

func (s *flakyStore) record(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if s.interrupted.Load() {
		return fmt.Errorf("%s: %w", op, context.Canceled)
	}

	if s.failing.Load() {
		return errBackend
	}

	return nil
}

func (s *flakyStore) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[op]
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.record(ctx, "get"); err != nil {
		return nil, false, err
	}

	return s.inner.Get(ctx, key)
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.record(ctx, "set"); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastTTL = ttl
	s.mu.Unlock()

	return s.inner.Set(ctx, key, value, ttl)
}

func (s *flakyStore) Has(ctx context.Context, key string) (bool, error) {
	if err := s.record(ctx, "has"); err != nil {
		return false, err
	}

	return s.inner.Has(ctx, key)
}

func (s *flakyStore) Delete(ctx context.Context, key string) error {
	if err := s.record(ctx, "delete"); err != nil {
		return err
	}

	return s.inner.Delete(ctx, key)
}

func (s *flakyStore) Clear(ctx context.Context) error {
	if err := s.record(ctx, "clear"); err != nil {
		return err
	}

	return s.inner.Clear(ctx)
}

func (s *flakyStore) GetAll(ctx context.Context) (map[string][]byte, error) {
	if err := s.record(ctx, "get_all"); err != nil {
		return nil, err
	}

	return s.inner.GetAll(ctx)
}

type ResilientCacheTestSuite struct {
	suite.Suite

	ctx     context.Context
	clock   *fakeClock
	primary *flakyStore
	local   *cache.LocalStore
	cache   *cache.Resilient
}

func TestResilientCacheTestSuite(t *testing.T) {
	suite.Run(t, new(ResilientCacheTestSuite))
}

func (s *ResilientCacheTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = newFakeClock()
	s.primary = newFlakyStore()
	s.local = cache.NewLocalStore(0, cache.WithClock(s.clock.Now))
	s.cache = cache.NewResilient(s.primary, s.local, cache.Options{
		RetryCooldown: time.Minute,
		MaxRetries:    3,
	}, cache.WithResilientClock(s.clock.Now))
}

func (s *ResilientCacheTestSuite) TestSetWritesPrimaryThenMirrorsLocal() {
	s.cache.Set(s.ctx, "k", []byte("v"), time.Minute)

	value, ok, err := s.primary.inner.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().Equal([]byte("v"), value)

	mirrored, ok, _ := s.local.Get(s.ctx, "k")
	s.Require().True(ok)
	s.Require().Equal([]byte("v"), mirrored)

	got, ok := s.cache.Get(s.ctx, "k")
	s.Require().True(ok)
	s.Require().Equal([]byte("v"), got)
	s.Require().Equal(1, s.primary.count("get"))
}

func (s *ResilientCacheTestSuite) TestZeroTTLIsNotCoercedToFinite() {
	s.cache.Set(s.ctx, "k", []byte("v"), 0)

	s.Require().Equal(cache.NoExpiration, s.primary.lastTTL)

	s.clock.Advance(1000 * time.Hour)
	_, ok, _ := s.local.Get(s.ctx, "k")
	s.Require().True(ok)
}

func (s *ResilientCacheTestSuite) TestFailoverKeepsServingFromLocal() {
	s.primary.failing.Store(true)

	s.cache.Set(s.ctx, "k", []byte("v"), time.Minute)
	s.Require().False(s.cache.Available())

	got, ok := s.cache.Get(s.ctx, "k")
	s.Require().True(ok)
	s.Require().Equal([]byte("v"), got)
	s.Require().True(s.cache.Has(s.ctx, "k"))

	s.cache.Delete(s.ctx, "k")
	_, ok = s.cache.Get(s.ctx, "k")
	s.Require().False(ok)

	s.Require().Equal(1, s.primary.count("set"))
	s.Require().Zero(s.primary.count("get"), "primary is not called while unavailable")
}

func (s *ResilientCacheTestSuite) TestProbeRespectsCooldownAndRecovers() {
	s.primary.failing.Store(true)
	s.cache.Get(s.ctx, "k")
	s.Require().False(s.cache.Available())

	for range 5 {
		s.cache.Get(s.ctx, "k")
	}

	s.Require().Zero(s.primary.count("has"), "no probe before the cool-down")

	s.clock.Advance(time.Minute)
	s.cache.Get(s.ctx, "k")
	s.Require().Equal(1, s.primary.count("has"))
	s.Require().False(s.cache.Available())

	s.cache.Get(s.ctx, "k")
	s.Require().Equal(1, s.primary.count("has"), "failed probe resets the cool-down clock")

	s.primary.failing.Store(false)
	s.clock.Advance(time.Minute)

	s.cache.Set(s.ctx, "after", []byte("ok"), 0)
	s.Require().True(s.cache.Available())
	s.Require().Equal(2, s.primary.count("has"))

	_, ok, _ := s.primary.inner.Get(s.ctx, "after")
	s.Require().True(ok, "call that triggered a successful probe goes to the primary")
}

func (s *ResilientCacheTestSuite) TestProbeBudgetIsCapped() {
	s.primary.failing.Store(true)
	s.cache.Get(s.ctx, "k")

	for range 10 {
		s.clock.Advance(time.Minute)
		s.cache.Get(s.ctx, "k")
	}

	s.Require().Equal(3, s.primary.count("has"))

	s.primary.failing.Store(false)
	s.clock.Advance(time.Minute)
	s.cache.Get(s.ctx, "k")
	s.Require().False(s.cache.Available())
}

func (s *ResilientCacheTestSuite) TestSuccessfulProbeResetsBudget() {
	s.primary.failing.Store(true)
	s.cache.Get(s.ctx, "k")

	s.clock.Advance(time.Minute)
	s.cache.Get(s.ctx, "k")
	s.clock.Advance(time.Minute)
	s.cache.Get(s.ctx, "k")
	s.Require().Equal(2, s.primary.count("has"))

	s.primary.failing.Store(false)
	s.clock.Advance(time.Minute)
	s.cache.Get(s.ctx, "k")
	s.Require().True(s.cache.Available())

	s.primary.failing.Store(true)
	s.cache.Get(s.ctx, "k")

	for range 5 {
		s.clock.Advance(time.Minute)
		s.cache.Get(s.ctx, "k")
	}

	s.Require().Equal(6, s.primary.count("has"), "three fresh probes after recovery")
}

func (s *ResilientCacheTestSuite) TestCallerCancellationKeepsPrimaryAvailable() {
	s.cache.Set(s.ctx, "k", []byte("v"), time.Minute)

	cancelled, cancel := context.WithCancel(s.ctx)
	cancel()

	got, ok := s.cache.Get(cancelled, "k")
	s.Require().True(ok)
	s.Require().Equal([]byte("v"), got)
	s.Require().True(s.cache.Available(), "a caller going away is not a store failure")

	s.Require().NoError(s.primary.inner.Set(s.ctx, "k", []byte("v2"), time.Minute))

	got, ok = s.cache.Get(s.ctx, "k")
	s.Require().True(ok)
	s.Require().Equal([]byte("v2"), got, "reads keep following the shared store")
}

func (s *ResilientCacheTestSuite) TestCanceledStoreErrorDoesNotFailOver() {
	s.cache.Set(s.ctx, "k", []byte("v"), time.Minute)
	s.primary.interrupted.Store(true)

	got, ok := s.cache.Get(s.ctx, "k")
	s.Require().True(ok, "served from the local mirror")
	s.Require().Equal([]byte("v"), got)
	s.Require().True(s.cache.Available())
}

func (s *ResilientCacheTestSuite) TestProbeIgnoresCallerCancellation() {
	s.primary.failing.Store(true)
	s.cache.Get(s.ctx, "k")
	s.Require().False(s.cache.Available())

	s.primary.failing.Store(false)
	s.clock.Advance(time.Minute)

	cancelled, cancel := context.WithCancel(s.ctx)
	cancel()

	s.cache.Get(cancelled, "k")
	s.Require().Equal(1, s.primary.count("has"))
	s.Require().True(s.cache.Available())
}

func (s *ResilientCacheTestSuite) TestClearAndGetAll() {
	s.cache.Set(s.ctx, "a", []byte("1"), 0)
	s.cache.Set(s.ctx, "b", []byte("2"), 0)

	all := s.cache.GetAll(s.ctx)
	s.Require().Len(all, 2)

	s.cache.Clear(s.ctx)
	s.Require().Empty(s.cache.GetAll(s.ctx))
	s.Require().Zero(s.local.Len())
}

func (s *ResilientCacheTestSuite) TestTotalFailureIsAMiss() {
	local := newFlakyStore()
	local.failing.Store(true)
	s.primary.failing.Store(true)

	c := cache.NewResilient(s.primary, local, cache.Options{})

	c.Set(s.ctx, "k", []byte("v"), time.Minute)

	_, ok := c.Get(s.ctx, "k")
	s.Require().False(ok)
	s.Require().False(c.Has(s.ctx, "k"))
	s.Require().NotNil(c.GetAll(s.ctx))
}

func (s *ResilientCacheTestSuite) TestLocalOnly() {
	c := cache.NewResilient(nil, s.local, cache.Options{DefaultTTL: time.Second})
	s.Require().False(c.Available())

	c.Set(s.ctx, "k", []byte("v"), 0)
	_, ok := c.Get(s.ctx, "k")
	s.Require().True(ok)

	s.clock.Advance(2 * time.Second)
	_, ok = c.Get(s.ctx, "k")
	s.Require().False(ok, "default ttl applies to zero ttl")
}

func (s *ResilientCacheTestSuite) TestJSONHelpers() {
	type payload struct {
		Suggestions []string `json:"suggestions"`
	}

	cache.SetJSON(s.ctx, s.cache, "json", payload{Suggestions: []string{"a", "b"}}, time.Minute)

	got, ok := cache.GetJSON[payload](s.ctx, s.cache, "json")
	s.Require().True(ok)
	s.Require().Equal([]string{"a", "b"}, got.Suggestions)

	s.cache.Set(s.ctx, "broken", []byte("{"), time.Minute)
	_, ok = cache.GetJSON[payload](s.ctx, s.cache, "broken")
	s.Require().False(ok)
}
