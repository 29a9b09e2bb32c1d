// Package cognito turns Cognito user pool ID tokens into caller identities.
package cognito

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bookstore/internal/domain"
	gw "bookstore/internal/gateway"
)

const maxClockSkew = 30 * time.Second

// Claim names carried by the user pool's ID tokens.
const (
	ClaimUsername      = "cognito:username"
	ClaimRole          = "custom:role"
	ClaimYearsAsMember = "custom:yearsAsMember"
	ClaimTokenUse      = "token_use"
)

// Issuer returns the issuer URL of a Cognito user pool.
func Issuer(region, userPoolID string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
}

// Config identifies the user pool whose tokens are accepted.
type Config struct {
	Issuer   string
	ClientID string // audience check is skipped when empty
}

// Verifier validates ID tokens and extracts the caller identity.
type Verifier struct {
	keys     gw.JWKSProvider
	regions  RegionResolver
	issuer   string
	clientID string
}

// NewVerifier creates a verifier. regions may be nil, in which case every
// caller's region is Unknown.
func NewVerifier(keys gw.JWKSProvider, cfg Config, regions RegionResolver) *Verifier {
	return &Verifier{
		keys:     keys,
		regions:  regions,
		issuer:   cfg.Issuer,
		clientID: cfg.ClientID,
	}
}

// Verify validates token and maps its claims to an identity. An empty token is
// the Unknown identity. Any other failure returns an error wrapping
// domain.ErrInvalidToken or domain.ErrTokenExpired; callers decide whether to
// degrade or reject.
func (v *Verifier) Verify(ctx context.Context, token, sourceAddr string) (domain.Identity, error) {
	if token == "" {
		return domain.UnknownIdentity(), nil
	}

	opts := []jwt.ParserOption{
		// Only RS256: prevents algorithm confusion attacks.
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithLeeway(maxClockSkew),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(v.issuer),
	}
	if v.clientID != "" {
		opts = append(opts, jwt.WithAudience(v.clientID))
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, domain.ErrInvalidToken
		}
		return v.keys.GetKey(ctx, kid)
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
		}
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	if use, _ := claims[ClaimTokenUse].(string); use != "id" {
		return domain.Identity{}, fmt.Errorf("%w: token_use %q, want id", domain.ErrInvalidToken, use)
	}

	username, _ := claims[ClaimUsername].(string)
	if username == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing %s", domain.ErrInvalidToken, ClaimUsername)
	}
	roleClaim, _ := claims[ClaimRole].(string)

	region := domain.Unknown
	if v.regions != nil {
		region = v.regions.Resolve(ctx, sourceAddr, username)
	}

	return domain.NewIdentity(username, domain.ParseRole(roleClaim), tenure(claims[ClaimYearsAsMember]), region), nil
}

// tenure reads the yearsAsMember claim. Cognito custom attributes arrive as
// strings, but numbers are accepted too. Anything else, including a value
// outside the int32 range, is an unknown tenure.
func tenure(v any) *int {
	var n int
	switch t := v.(type) {
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(t), 10, 32)
		if err != nil {
			return nil
		}
		n = int(parsed)
	case float64:
		if t != math.Trunc(t) || t < 0 || t > math.MaxInt32 {
			return nil
		}
		n = int(t)
	default:
		return nil
	}
	if n < 0 {
		return nil
	}
	return &n
}
