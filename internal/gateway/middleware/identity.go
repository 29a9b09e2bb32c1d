package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"bookstore/internal/domain"
	gw "bookstore/internal/gateway"
	"bookstore/internal/platform/telemetry"
)

// Identity resolves the caller identity from the Authorization header and
// stores it in the request context. A missing, malformed, expired or
// otherwise invalid credential never fails the request: the caller continues
// as the Unknown identity and only sees what an anonymous visitor may see.
// The metrics parameter is optional; pass nil to skip metric recording.
func Identity(verifier gw.IdentityVerifier, logger *slog.Logger, m *telemetry.CatalogMetrics) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := bearerToken(r)

			id, err := verifier.Verify(ctx, token, clientIP(r))
			result := "success"
			switch {
			case err != nil:
				result = "failure"
				if errors.Is(err, domain.ErrTokenExpired) {
					result = "expired"
				}
				logger.Debug("credential rejected, continuing as unknown caller",
					"error", err,
					"request_id", gw.RequestIDFromContext(ctx),
				)
				id = domain.UnknownIdentity()
			case token == "":
				result = "anonymous"
			}

			if m != nil {
				m.RecordAuthValidation(ctx, result)
			}
			next.ServeHTTP(w, r.WithContext(gw.ContextWithIdentity(ctx, id)))
		})
	}
}

// bearerToken returns the credential from the Authorization header. Both
// "Bearer <token>" and a bare token are accepted, since the user pool's
// hosted clients send the ID token without a scheme. A scheme with no
// credential after it is an empty token.
func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return ""
	}
	scheme, rest, found := strings.Cut(auth, " ")
	if !found {
		if strings.EqualFold(auth, "Bearer") {
			return ""
		}
		return auth
	}
	if !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(rest)
}
