package gateway

import (
	"context"
	"crypto/rsa"
	"net/http"

	"bookstore/internal/domain"
)

// JWKSProvider fetches and caches public keys from the user pool's JWKS endpoint.
type JWKSProvider interface {
	// GetKey returns the public key for the given key ID.
	GetKey(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// IdentityVerifier turns a bearer token into a caller identity.
type IdentityVerifier interface {
	// Verify validates token. An empty token yields the Unknown identity;
	// an invalid one returns an error wrapping domain.ErrInvalidToken or
	// domain.ErrTokenExpired.
	Verify(ctx context.Context, token, sourceAddr string) (domain.Identity, error)
}

// RateLimiter decides whether a request identified by key should be allowed.
type RateLimiter interface {
	Allow(key string) RateLimitResult
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	RetryAfter int // seconds until next token available; 0 if allowed
}

// StatusWriter wraps http.ResponseWriter to capture the status code.
type StatusWriter struct {
	http.ResponseWriter
	Code int
}

func (sw *StatusWriter) WriteHeader(code int) {
	sw.Code = code
	sw.ResponseWriter.WriteHeader(code)
}

// IdentityFromContext extracts the caller identity from a request context.
// Requests that never passed the identity middleware get the Unknown identity.
func IdentityFromContext(ctx context.Context) domain.Identity {
	id, ok := ctx.Value(identityKey{}).(domain.Identity)
	if !ok {
		return domain.UnknownIdentity()
	}
	return id
}

// ContextWithIdentity stores the caller identity in the context.
func ContextWithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

type identityKey struct{}

// RequestIDFromContext extracts the request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextWithRequestID stores the request ID in the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

type requestIDKey struct{}
