package middleware

import (
	"net/http"
	"time"

	gw "bookstore/internal/gateway"
	"bookstore/internal/platform/telemetry"
)

// Metrics returns middleware that records HTTP request metrics. Paths outside
// knownPaths are recorded as "other" to keep label cardinality bounded; item
// lookups under /product/ are folded into one label.
func Metrics(m *telemetry.CatalogMetrics, knownPaths ...string) Middleware {
	known := make(map[string]struct{}, len(knownPaths))
	for _, p := range knownPaths {
		known[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &gw.StatusWriter{ResponseWriter: w, Code: http.StatusOK}

			next.ServeHTTP(sw, r)

			if m != nil {
				m.RecordHTTPRequest(r.Context(), r.Method, routeLabel(r.URL.Path, known), sw.Code, time.Since(start).Seconds())
			}
		})
	}
}

func routeLabel(path string, known map[string]struct{}) string {
	if len(known) == 0 {
		return path
	}
	if _, ok := known[path]; ok {
		return path
	}
	if len(path) > len("/product/") && path[:len("/product/")] == "/product/" {
		return "/product/{id}"
	}
	return "other"
}
