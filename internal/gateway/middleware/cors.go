package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns middleware answering browser preflights for the storefront.
// The allowed origin is fixed per deployment. "*" allows any origin but never
// with credentials.
func CORS(allowedOrigin string) Middleware {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{http.MethodOptions, http.MethodPost, http.MethodGet},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: allowedOrigin != "*",
		MaxAge:           300,
	})
}
