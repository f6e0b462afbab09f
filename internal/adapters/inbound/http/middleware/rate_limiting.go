package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/internal/ratelimit"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
)

const (
	RateLimitLimitHeader     = "X-RateLimit-Limit"
	RateLimitRemainingHeader = "X-RateLimit-Remaining"
	RateLimitResetHeader     = "X-RateLimit-Reset"
	RetryAfterHeader         = "Retry-After"
)

// Admitter decides whether identity may spend one unit of policy.
type Admitter interface {
	Admit(ctx context.Context, identity string, policy ratelimit.Policy) (ratelimit.Decision, error)
}

type rejectionBody struct {
	Message string `json:"message"`
}

// RateLimit admits requests per caller against one endpoint policy. When the
// decision cannot be evaluated the endpoint's FailOpen flag picks between
// serving the request and answering 503.
func RateLimit(admitter Admitter, limit config.EndpointLimit, rejection string, log logger.Logger) func(http.Handler) http.Handler {
	policy := ratelimit.FromConfig(limit)
	log = log.Component("rate_limit")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentity(r.Context()).UserID
			if identity == "" {
				identity = guestIdentityPrefix + clientIP(r)
			}

			decision, err := admitter.Admit(r.Context(), identity, policy)
			if err != nil {
				reqLogger := log.WithContext(r.Context())
				reqLogger.Warn().
					Err(err).
					Str("policy", policy.KeyPrefix).
					Bool("fail_open", limit.FailOpen).
					Msg("rate limit decision could not be evaluated")

				if limit.FailOpen {
					next.ServeHTTP(w, r)

					return
				}

				writeError(w, http.StatusServiceUnavailable, "RATE_LIMITER_UNAVAILABLE", "rate limiting is temporarily unavailable")

				return
			}

			SetRateLimitHeaders(w, decision)

			if !decision.Allowed {
				w.Header().Set(RetryAfterHeader, strconv.Itoa(decision.RetryAfterSeconds()))
				writeJSON(w, http.StatusTooManyRequests, rejectionBody{Message: rejection})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SetRateLimitHeaders reports the quota; an unbounded decision has none.
// The reset is an epoch in milliseconds.
func SetRateLimitHeaders(w http.ResponseWriter, decision ratelimit.Decision) {
	if decision.Unbounded {
		return
	}

	remaining := max(decision.Remaining, 0)

	w.Header().Set(RateLimitLimitHeader, strconv.Itoa(decision.Limit))
	w.Header().Set(RateLimitRemainingHeader, strconv.Itoa(remaining))
	w.Header().Set(RateLimitResetHeader, strconv.FormatInt(decision.ResetAt.UnixMilli(), 10))
}
