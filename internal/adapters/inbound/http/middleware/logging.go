package middleware

import (
	"net/http"
	"time"

	"github.com/RG-Partners/soraai-chat/pkg/logger"
)

// AccessLogger logs one line per request once the handler returns, so
// streamed responses are logged after their last frame.
func AccessLogger(log logger.Logger, includeQueryParams bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkipAccessLog(r.Context()) {
				next.ServeHTTP(w, r)

				return
			}

			start := time.Now()
			wrapped := NewFlushableResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			reqLogger := log.WithContext(r.Context()).
				With().
				Str("component", "http").
				Logger()

			event := reqLogger.Info()

			switch status := wrapped.StatusCode(); {
			case status >= http.StatusInternalServerError:
				event = reqLogger.Error()
			case status >= http.StatusBadRequest:
				event = reqLogger.Warn()
			}

			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Str("proto", r.Proto).
				Int("status", wrapped.StatusCode()).
				Uint64("bytes", wrapped.BytesWritten()).
				Int64("duration_ms", time.Since(start).Milliseconds())

			if includeQueryParams && r.URL.RawQuery != "" {
				event.Str("query", r.URL.RawQuery)
			}

			if cacheStatus := wrapped.Header().Get(CacheHeader); cacheStatus != "" {
				event.Str("cache", cacheStatus)
			}

			event.Send()
		})
	}
}
