package circuitbreaker

import (
	"errors"

	"github.com/sony/gobreaker/v2"
)

type (
	// CircuitBreaker wraps gobreaker to guard calls to a remote dependency.
	CircuitBreaker[T any] struct {
		cb *gobreaker.CircuitBreaker[T]
	}

	// StateChangeFunc is notified whenever the breaker moves between states.
	StateChangeFunc func(name string, from, to string)

	// Option customises the breaker settings.
	Option func(*gobreaker.Settings)
)

// WithStateChange registers fn as the state transition listener.
func WithStateChange(fn StateChangeFunc) Option {
	return func(s *gobreaker.Settings) {
		s.OnStateChange = func(name string, from, to gobreaker.State) {
			fn(name, from.String(), to.String())
		}
	}
}

// WithFailurePredicate marks which errors count as failures. Errors for which
// isSuccessful returns true do not move the breaker towards open.
func WithFailurePredicate(isSuccessful func(err error) bool) Option {
	return func(s *gobreaker.Settings) {
		s.IsSuccessful = isSuccessful
	}
}

// New creates a new circuit breaker with the given configuration.
// Returns nil if the circuit breaker is disabled in the configuration.
func New[T any](cfg Config, opts ...Option) *CircuitBreaker[T] {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: uint32(cfg.MaxRequests),
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
	}

	for _, opt := range opts {
		opt(&settings)
	}

	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Name returns the name of the circuit breaker.
func (c *CircuitBreaker[T]) Name() string {
	return c.cb.Name()
}

// State reports the current breaker state as "closed", "half-open" or "open".
// A nil breaker is always closed.
func (c *CircuitBreaker[T]) State() string {
	if c == nil {
		return gobreaker.StateClosed.String()
	}

	return c.cb.State().String()
}

// Execute runs fn through the circuit breaker. A nil breaker runs fn directly.
// Open and half-open rejections are reported as ErrCircuitOpen and ErrTooManyRequests.
func Execute[T any](cb *CircuitBreaker[T], fn func() (T, error)) (T, error) {
	if cb == nil {
		return fn()
	}

	result, err := cb.cb.Execute(fn)
	if err == nil {
		return result, nil
	}

	var zero T

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return zero, ErrCircuitOpen
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return zero, ErrTooManyRequests
	default:
		return result, err
	}
}
