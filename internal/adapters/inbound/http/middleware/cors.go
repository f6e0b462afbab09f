package middleware

import (
	"net/http"

	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/go-chi/cors"
)

func CORS(cfg config.CORS) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Authorization", "Content-Type", RequestIDHeader, CorrelationIDHeader,
			IdempotencyKeyHeader, "traceparent", "tracestate",
		},
		ExposedHeaders: []string{
			RequestIDHeader, CorrelationIDHeader, CacheHeader,
			RateLimitLimitHeader, RateLimitRemainingHeader, RateLimitResetHeader, RetryAfterHeader,
		},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
}
