package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/RG-Partners/soraai-chat/pkg/logger"
)

// Recovery turns a panic into a 500 unless the response already started.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracked := NewFlushableResponseWriter(w)

			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}

				if rvr == http.ErrAbortHandler {
					// the client is gone, net/http aborts the connection
					panic(rvr)
				}

				var errMsg string
				switch v := rvr.(type) {
				case string:
					errMsg = v
				case error:
					errMsg = v.Error()
				default:
					errMsg = fmt.Sprintf("%v", v)
				}

				reqLogger := log.WithContext(r.Context())
				reqLogger.Error().
					Str("error", errMsg).
					Str("stack", string(debug.Stack())).
					Str("path", r.URL.Path).
					Str("method", r.Method).
					Bool("response_started", tracked.WroteHeader()).
					Msg("panic recovered")

				if tracked.WroteHeader() {
					return
				}

				writeError(tracked, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}()

			next.ServeHTTP(tracked, r)
		})
	}
}
