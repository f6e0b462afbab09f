package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"
)

const skipAccessLogKey contextKey = "skip_access_log"

var healthEndpoints = []string{
	"/v1/health",
	"/v1/liveness",
	"/v1/readiness",
}

// HealthCheckFilter marks probe requests so the access log can drop them.
func HealthCheckFilter(logHealthChecks bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logHealthChecks || !IsHealthEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)

				return
			}

			ctx := context.WithValue(r.Context(), skipAccessLogKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func IsHealthEndpoint(path string) bool {
	return slices.Contains(healthEndpoints, strings.TrimSuffix(path, "/"))
}

func shouldSkipAccessLog(ctx context.Context) bool {
	skip, ok := ctx.Value(skipAccessLogKey).(bool)

	return ok && skip
}
