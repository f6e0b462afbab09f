package cache

import (
	"context"
	"maps"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// LocalStore is an in-process Store. Expired entries are dropped lazily on
// read and by a periodic sweeper.
type LocalStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type LocalOption func(*LocalStore)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) LocalOption {
	return func(s *LocalStore) {
		s.now = now
	}
}

// NewLocalStore starts a sweeper every sweepInterval; a non positive
// interval disables it.
func NewLocalStore(sweepInterval time.Duration, opts ...LocalOption) *LocalStore {
	s := &LocalStore{
		entries: make(map[string]entry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if sweepInterval > 0 {
		go s.sweepEvery(sweepInterval)
	}

	return s
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	now := s.now()

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if e.expired(now) {
		s.mu.Lock()
		if current, ok := s.entries[key]; ok && current.expired(now) {
			delete(s.entries, key)
		}
		s.mu.Unlock()

		return nil, false, nil
	}

	return e.value, true, nil
}

func (s *LocalStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()

	return nil
}

func (s *LocalStore) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)

	return ok, err
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()

	return nil
}

func (s *LocalStore) Clear(_ context.Context) error {
	s.mu.Lock()
	clear(s.entries)
	s.mu.Unlock()

	return nil
}

func (s *LocalStore) GetAll(_ context.Context) (map[string][]byte, error) {
	s.sweep()

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]byte, len(s.entries))
	for key, e := range s.entries {
		result[key] = e.value
	}

	return result, nil
}

// Len counts entries including ones that expired but were not purged yet.
func (s *LocalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Close stops the sweeper.
func (s *LocalStore) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

func (s *LocalStore) sweepEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *LocalStore) sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	maps.DeleteFunc(s.entries, func(_ string, e entry) bool {
		return e.expired(now)
	})
}
