package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/ports"
	"github.com/RG-Partners/soraai-chat/pkg/idempotency"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// InFlightGuard rejects a submission while another one with the same
// Idempotency-Key from the same caller is still being processed. Requests
// without the header pass through. A store failure lets the request through
// unguarded.
func InFlightGuard(guard ports.InFlightGuard, ttl time.Duration, log logger.Logger) func(http.Handler) http.Handler {
	log = log.Component("inflight_guard")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" || guard == nil {
				next.ServeHTTP(w, r)

				return
			}

			if err := idempotency.Validate(key); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY", err.Error())

				return
			}

			ctx := r.Context()
			reqLogger := log.WithContext(ctx)
			lockKey := idempotency.BuildLockKey(GetIdentity(ctx).UserID, r.URL.Path, key)

			token, acquired, err := guard.Acquire(ctx, lockKey, ttl)
			if err != nil {
				reqLogger.Warn().Err(err).Msg("in-flight guard unavailable, serving unguarded")
				next.ServeHTTP(w, r)

				return
			}

			if !acquired {
				writeError(w, http.StatusConflict, "REQUEST_IN_PROGRESS",
					"a request with this idempotency key is already being processed")

				return
			}

			defer func() {
				if err := guard.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
					reqLogger.Warn().Err(err).Msg("releasing in-flight lock failed")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
