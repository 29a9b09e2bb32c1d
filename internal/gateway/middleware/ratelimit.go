package middleware

import (
	"net"
	"net/http"

	gw "bookstore/internal/gateway"
	"bookstore/internal/platform/telemetry"
)

// KeyFunc derives the rate limit key of a request.
type KeyFunc func(r *http.Request) string

// ByClientIP keys requests by the connection's remote address.
func ByClientIP(r *http.Request) string {
	return "ip:" + clientIP(r)
}

// ByCaller keys authenticated callers by username and everyone else by IP, so
// signed-in users behind one NAT do not share a budget. Requires Identity to
// run first.
func ByCaller(r *http.Request) string {
	id := gw.IdentityFromContext(r.Context())
	if id.IsUnknown() {
		return ByClientIP(r)
	}
	return "user:" + id.Username
}

// RateLimit returns middleware that enforces per-key rate limits.
// The metrics parameter is optional; pass nil to skip metric recording.
func RateLimit(limiter gw.RateLimiter, key KeyFunc, m *telemetry.CatalogMetrics) Middleware {
	if key == nil {
		key = ByClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			layer := "ip"
			if len(k) > 5 && k[:5] == "user:" {
				layer = "user"
			}

			if result := limiter.Allow(k); !result.Allowed {
				if m != nil {
					m.RecordRateLimitDecision(r.Context(), layer, "denied")
				}
				retry := result.RetryAfter
				if retry < 1 {
					retry = 1
				}
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", retry)
				return
			}

			if m != nil {
				m.RecordRateLimitDecision(r.Context(), layer, "allowed")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	// X-Forwarded-For is client-controlled and must not be trusted without a
	// validated trusted proxy list.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
