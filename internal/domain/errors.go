package domain

import "errors"

var (
	// ErrInvalidToken and ErrTokenExpired are credential failures. The HTTP
	// edge degrades them to the unknown identity instead of rejecting.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// ErrCatalogLoad is fatal at startup.
	ErrCatalogLoad = errors.New("catalog load failed")

	// ErrServiceUnavailable means the decision service or policy registry
	// could not answer. It is never turned into an allow or a deny.
	ErrServiceUnavailable = errors.New("authorization service unavailable")
)

// ErrorResponse is the standard JSON error envelope returned to clients.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}
