package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/RG-Partners/soraai-chat/pkg/metrics"
	"github.com/RG-Partners/soraai-chat/pkg/metrics/noop"
	"go.opentelemetry.io/otel/attribute"
)

const healthcheckKey = "__healthcheck__"

type (
	Options struct {
		// DefaultTTL applies when Set is called with a zero ttl. Zero keeps
		// such entries forever.
		DefaultTTL time.Duration
		// RetryCooldown is the minimum gap between probes of a primary store
		// marked unavailable.
		RetryCooldown time.Duration
		// MaxRetries caps consecutive failed probes; once spent, the primary
		// stays disabled for the life of the process.
		MaxRetries uint
		// OpTimeout bounds each primary store call and probe.
		OpTimeout time.Duration
	}

	// Resilient reads and writes through a primary network store and mirrors
	// writes into a local store. Any primary failure flips the cache to the
	// local store until a probe succeeds. Its methods never return errors: a
	// failure in both stores reads as a miss.
	Resilient struct {
		primary Store
		local   Store
		opts    Options
		logger  logger.Logger
		metrics metrics.Client
		now     func() time.Time

		mu               sync.Mutex
		available        bool
		failureCount     uint
		lastRetryAttempt time.Time
	}

	ResilientOption func(*Resilient)
)

func WithLogger(l logger.Logger) ResilientOption {
	return func(r *Resilient) {
		r.logger = l.Component("resilient_cache")
	}
}

func WithMetrics(m metrics.Client) ResilientOption {
	return func(r *Resilient) {
		r.metrics = m
	}
}

func WithResilientClock(now func() time.Time) ResilientOption {
	return func(r *Resilient) {
		r.now = now
	}
}

// NewResilient composes local with an optional primary. A nil primary makes
// the cache local only.
func NewResilient(primary Store, local Store, opts Options, options ...ResilientOption) *Resilient {
	if opts.RetryCooldown <= 0 {
		opts.RetryCooldown = 60 * time.Second
	}

	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}

	r := &Resilient{
		primary:   primary,
		local:     local,
		opts:      opts,
		logger:    logger.Nop(),
		metrics:   noop.NewMetricsClient(),
		now:       time.Now,
		available: primary != nil,
	}

	for _, option := range options {
		option(r)
	}

	return r
}

// Available reports whether calls currently go to the primary store.
func (r *Resilient) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.available
}

func (r *Resilient) Get(ctx context.Context, key string) ([]byte, bool) {
	var (
		value []byte
		found bool
	)

	r.run(ctx, "get",
		func(ctx context.Context) (err error) {
			value, found, err = r.primary.Get(ctx, key)

			return err
		},
		func(ctx context.Context) {
			value, found, _ = r.local.Get(ctx, key)
		},
	)

	return value, found
}

func (r *Resilient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	ttl = r.resolveTTL(ttl)

	r.run(ctx, "set",
		func(ctx context.Context) error {
			if err := r.primary.Set(ctx, key, value, ttl); err != nil {
				return err
			}

			return r.local.Set(ctx, key, value, ttl)
		},
		func(ctx context.Context) {
			_ = r.local.Set(ctx, key, value, ttl)
		},
	)
}

func (r *Resilient) Has(ctx context.Context, key string) bool {
	var found bool

	r.run(ctx, "has",
		func(ctx context.Context) (err error) {
			found, err = r.primary.Has(ctx, key)

			return err
		},
		func(ctx context.Context) {
			found, _ = r.local.Has(ctx, key)
		},
	)

	return found
}

func (r *Resilient) Delete(ctx context.Context, key string) {
	r.run(ctx, "delete",
		func(ctx context.Context) error {
			if err := r.primary.Delete(ctx, key); err != nil {
				return err
			}

			return r.local.Delete(ctx, key)
		},
		func(ctx context.Context) {
			_ = r.local.Delete(ctx, key)
		},
	)
}

func (r *Resilient) Clear(ctx context.Context) {
	r.run(ctx, "clear",
		func(ctx context.Context) error {
			if err := r.primary.Clear(ctx); err != nil {
				return err
			}

			return r.local.Clear(ctx)
		},
		func(ctx context.Context) {
			_ = r.local.Clear(ctx)
		},
	)
}

func (r *Resilient) GetAll(ctx context.Context) map[string][]byte {
	var all map[string][]byte

	r.run(ctx, "get_all",
		func(ctx context.Context) (err error) {
			all, err = r.primary.GetAll(ctx)

			return err
		},
		func(ctx context.Context) {
			all, _ = r.local.GetAll(ctx)
		},
	)

	if all == nil {
		all = map[string][]byte{}
	}

	return all
}

func (r *Resilient) resolveTTL(ttl time.Duration) time.Duration {
	if ttl != 0 {
		return ttl
	}

	if r.opts.DefaultTTL > 0 {
		return r.opts.DefaultTTL
	}

	return NoExpiration
}

// run sends op to the primary store when it is usable and falls back to the
// local store for this call on any primary error. Primary calls are detached
// from the caller's cancellation: a client going away says nothing about the
// store's health and must not take it offline for everyone else.
func (r *Resilient) run(ctx context.Context, name string, primaryOp func(context.Context) error, fallback func(context.Context)) {
	if !r.usePrimary(ctx) {
		fallback(ctx)

		return
	}

	opCtx, cancel := r.opContext(ctx)
	err := primaryOp(opCtx)
	cancel()

	if err == nil {
		return
	}

	if errors.Is(err, context.Canceled) {
		fallback(ctx)

		return
	}

	r.markUnavailable()

	r.logger.Warn().
		Err(err).
		Str("operation", name).
		Msg("primary cache store failed, falling back to local store")

	r.metrics.Inc(ctx, "cache_failovers_total", 1, attribute.String("operation", name))

	fallback(ctx)
}

func (r *Resilient) usePrimary(ctx context.Context) bool {
	if r.primary == nil {
		return false
	}

	r.mu.Lock()

	if r.available {
		r.mu.Unlock()

		return true
	}

	now := r.now()
	if r.failureCount >= r.opts.MaxRetries || now.Sub(r.lastRetryAttempt) < r.opts.RetryCooldown {
		r.mu.Unlock()

		return false
	}

	r.lastRetryAttempt = now
	r.failureCount++
	attempt := r.failureCount
	r.mu.Unlock()

	probeCtx, cancel := r.opContext(ctx)
	defer cancel()

	if _, err := r.primary.Has(probeCtx, healthcheckKey); err != nil {
		r.logger.Debug().
			Err(err).
			Uint("attempt", attempt).
			Msg("primary cache store probe failed")

		return false
	}

	r.mu.Lock()
	r.available = true
	r.failureCount = 0
	r.mu.Unlock()

	r.logger.Info().Msg("primary cache store recovered")

	return true
}

// markUnavailable starts the cool-down from the failure itself.
func (r *Resilient) markUnavailable() {
	r.mu.Lock()
	r.available = false
	r.lastRetryAttempt = r.now()
	r.mu.Unlock()
}

// opContext keeps the caller's values but not its cancellation, bounded by
// OpTimeout when one is set.
func (r *Resilient) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)

	if r.opts.OpTimeout <= 0 {
		return detached, func() {}
	}

	return context.WithTimeout(detached, r.opts.OpTimeout)
}
