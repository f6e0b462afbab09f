package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/throttled/throttled/v2"
)

// Backend is the shared counter store: Lua windows plus a GCRA store for
// token buckets.
type Backend interface {
	ScriptRunner
	Ping(ctx context.Context) error
}

type (
	// Registry builds one limiter per policy fingerprint and reuses it for the
	// life of the process.
	Registry struct {
		backend      Backend
		gcraStore    throttled.GCRAStoreCtx
		logger       logger.Logger
		now          func() time.Time
		checkTimeout time.Duration

		mu       sync.Mutex
		limiters map[string]Limiter
	}

	RegistryOption func(*Registry)
)

func WithLogger(l logger.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l.Component("rate_limiter")
	}
}

func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// WithCheckTimeout bounds every admission round trip.
func WithCheckTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.checkTimeout = d
	}
}

// NewRegistry pings the backend once. When it is nil or unreachable every
// limiter the registry hands out always allows.
func NewRegistry(ctx context.Context, backend Backend, gcraStore throttled.GCRAStoreCtx, opts ...RegistryOption) *Registry {
	r := &Registry{
		backend:   backend,
		gcraStore: gcraStore,
		logger:    logger.Nop(),
		now:       time.Now,
		limiters:  make(map[string]Limiter),
	}

	for _, opt := range opts {
		opt(r)
	}

	if backend == nil {
		r.logger.Warn().Msg("no shared counter store configured, rate limiting disabled")

		return r
	}

	if err := backend.Ping(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("shared counter store unreachable, rate limiting disabled")
		r.backend = nil
		r.gcraStore = nil
	}

	return r
}

// Unbounded reports whether the registry degraded to always allow.
func (r *Registry) Unbounded() bool {
	return r.backend == nil
}

// For returns the limiter serving policy, building it on first use.
func (r *Registry) For(policy Policy) (Limiter, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	fingerprint := policy.Fingerprint()

	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, ok := r.limiters[fingerprint]; ok {
		return limiter, nil
	}

	limiter, err := r.build(policy)
	if err != nil {
		return nil, err
	}

	r.limiters[fingerprint] = limiter

	return limiter, nil
}

func (r *Registry) build(policy Policy) (Limiter, error) {
	if r.backend == nil {
		return unboundedLimiter{}, nil
	}

	switch policy.Mode {
	case ModeSliding:
		return &slidingLimiter{runner: r.backend, policy: policy, now: r.now}, nil
	case ModeFixed:
		return &fixedLimiter{runner: r.backend, policy: policy, now: r.now}, nil
	case ModeToken:
		if r.gcraStore == nil {
			return unboundedLimiter{}, nil
		}

		return newTokenBucketLimiter(r.gcraStore, policy, r.now)
	default:
		return nil, fmt.Errorf("unknown rate limit mode %q", policy.Mode)
	}
}

// Admit checks identity against policy within the configured timeout.
func (r *Registry) Admit(ctx context.Context, identity string, policy Policy) (Decision, error) {
	limiter, err := r.For(policy)
	if err != nil {
		return Decision{}, err
	}

	if r.checkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.checkTimeout)
		defer cancel()
	}

	start := time.Now()
	decision, err := limiter.Admit(ctx, identity)

	r.logger.Debug().
		Str("policy", policy.KeyPrefix).
		Bool("allowed", decision.Allowed).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Err(err).
		Msg("rate limit check")

	return decision, err
}

// Size is the number of limiter instances built so far.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.limiters)
}
