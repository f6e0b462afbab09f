package middleware

import (
	"context"
	"net/http"

	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/google/uuid"
)

type contextKey string

const (
	RequestIDHeader     = "Request-Id"
	CorrelationIDHeader = "Correlation-Id"
	// CacheHeader reports whether a cached answer served the request.
	CacheHeader = "X-Cache"
)

// RequestTracking reuses the caller's request and correlation ids or mints
// new ones, echoes them back and stores them where the logger finds them.
func RequestTracking() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := r.Header.Get(CorrelationIDHeader)
			if correlationID == "" {
				correlationID = uuid.NewString()
			}

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}

			ctx := logger.ContextWithCorrelationID(r.Context(), correlationID)
			ctx = logger.ContextWithRequestID(ctx, requestID)

			w.Header().Set(CorrelationIDHeader, correlationID)
			w.Header().Set(RequestIDHeader, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetRequestID(ctx context.Context) string {
	return logger.RequestIDFromContext(ctx)
}

func GetCorrelationID(ctx context.Context) string {
	return logger.CorrelationIDFromContext(ctx)
}
