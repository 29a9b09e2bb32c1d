package middleware

import (
	"log/slog"
	"net/http"
	"time"

	gw "bookstore/internal/gateway"
)

// Logging returns a middleware that logs each request using slog. Place it
// inside Identity so the caller is known by the time the request completes.
func Logging(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &gw.StatusWriter{ResponseWriter: w, Code: http.StatusOK}

			next.ServeHTTP(sw, r)

			id := gw.IdentityFromContext(r.Context())
			level := slog.LevelInfo
			if sw.Code >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.Code,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"request_id", gw.RequestIDFromContext(r.Context()),
				"username", id.Username,
				"role", id.Role.String(),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}
