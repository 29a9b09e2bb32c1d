// Package middleware holds the HTTP middleware of the catalog service.
package middleware

import "net/http"

// Middleware is a function that wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middleware in order: the first middleware is the outermost
// wrapper. Nil entries are skipped so optional layers can be left out inline.
func Chain(handler http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		if mw[i] == nil {
			continue
		}
		handler = mw[i](handler)
	}
	return handler
}
