package circuitbreaker

import "errors"

var (
	// ErrCircuitOpen is returned without calling the upstream while the
	// breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned while half-open once every trial slot
	// is taken.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// IsRejection reports whether err means the breaker refused the call rather
// than the upstream failing it. Rejections are never worth retrying.
func IsRejection(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}
