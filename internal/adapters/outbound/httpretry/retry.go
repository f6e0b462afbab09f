// Package httpretry sends outbound HTTP requests through a circuit breaker
// with exponential backoff between attempts.
package httpretry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/pkg/circuitbreaker"
	"github.com/cenkalti/backoff/v5"
)

const maxErrorBody = 2048

// StatusError is an upstream response outside the 2xx range.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream responded %d: %s", e.Code, e.Body)
}

// Retryable reports whether a later attempt may succeed.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// RequestFunc builds a fresh request for every attempt.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Do retries transport errors, 429 and 5xx responses up to maxRetries times.
// Any other non 2xx response is returned as a *StatusError without retrying.
// On success the caller owns the response body.
func Do(
	ctx context.Context,
	client *http.Client,
	cb *circuitbreaker.CircuitBreaker[*http.Response],
	maxRetries uint,
	cfg config.Backoff,
	newRequest RequestFunc,
) (*http.Response, error) {
	operation := func() (*http.Response, error) {
		req, err := newRequest(ctx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := circuitbreaker.Execute(cb, func() (*http.Response, error) {
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				statusErr := ReadStatusError(resp)
				if statusErr.Retryable() {
					return nil, statusErr
				}

				return nil, backoff.Permanent(statusErr)
			}

			return resp, nil
		})

		switch {
		case err == nil:
			return resp, nil
		case circuitbreaker.IsRejection(err):
			return nil, backoff.Permanent(err)
		case ctx.Err() != nil:
			return nil, backoff.Permanent(ctx.Err())
		default:
			return nil, err
		}
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(NewBackOff(cfg)),
		backoff.WithMaxTries(maxRetries+1),
	)
}

// IsUpstreamFault reports whether err should count against the breaker:
// permanent client errors and cancellations do not.
func IsUpstreamFault(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		var statusErr *StatusError

		return errors.As(permanent.Err, &statusErr) && statusErr.Retryable()
	}

	return true
}

func NewBackOff(cfg config.Backoff) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BaseDelay
	b.Multiplier = cfg.Multiplier
	b.RandomizationFactor = cfg.Jitter
	b.MaxInterval = cfg.MaxDelay

	return b
}

// ReadStatusError drains and closes the body.
func ReadStatusError(resp *http.Response) *StatusError {
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	return &StatusError{Code: resp.StatusCode, Body: string(body)}
}
