package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	gw "bookstore/internal/gateway"
)

// Recovery catches panics from downstream handlers and returns a 500 JSON error.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", gw.RequestIDFromContext(r.Context()),
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred", 0)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
