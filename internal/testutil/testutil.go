package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Defaults used by IssueTestToken when the claims leave them empty.
const (
	TestRegion     = "us-east-1"
	TestUserPoolID = "us-east-1_TestPool"
	TestClientID   = "test-app-client"
	TestIssuer     = "https://cognito-idp." + TestRegion + ".amazonaws.com/" + TestUserPoolID
)

// UserClaims describes the Cognito ID token to issue.
type UserClaims struct {
	Username      string
	Role          string // custom:role; omitted when empty
	YearsAsMember string // custom:yearsAsMember; omitted when empty
	Issuer        string // defaults to TestIssuer
	Audience      string // defaults to TestClientID
	TokenUse      string // defaults to "id"
}

// GenerateTestKeyPair generates an RSA key pair for testing.
// Returns (keyID, privateKey, publicKey).
func GenerateTestKeyPair(t *testing.T) (string, *rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}
	kid := fmt.Sprintf("test-key-%d", time.Now().UnixNano())
	return kid, priv, &priv.PublicKey
}

// IssueTestToken creates a signed Cognito-shaped ID token for testing.
// A negative ttl produces an already-expired token.
func IssueTestToken(t *testing.T, kid string, priv *rsa.PrivateKey, c UserClaims, ttl time.Duration) string {
	t.Helper()

	signed, err := SignToken(kid, priv, c, ttl)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

// SignToken is IssueTestToken without the testing.T, for benchmarks and load tests.
func SignToken(kid string, priv *rsa.PrivateKey, c UserClaims, ttl time.Duration) (string, error) {
	if c.Issuer == "" {
		c.Issuer = TestIssuer
	}
	if c.Audience == "" {
		c.Audience = TestClientID
	}
	if c.TokenUse == "" {
		c.TokenUse = "id"
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":              fmt.Sprintf("sub-%s", c.Username),
		"cognito:username": c.Username,
		"token_use":        c.TokenUse,
		"aud":              c.Audience,
		"iss":              c.Issuer,
		"iat":              now.Unix(),
		"exp":              now.Add(ttl).Unix(),
	}
	if c.Role != "" {
		claims["custom:role"] = c.Role
	}
	if c.YearsAsMember != "" {
		claims["custom:yearsAsMember"] = c.YearsAsMember
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	return token.SignedString(priv)
}

// MockJWKSHandler returns an http.Handler that serves a JWKS response
// containing the given public key.
func MockJWKSHandler(kid string, pub *rsa.PublicKey) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jwks := map[string]any{
			"keys": []map[string]any{
				{
					"kty": "RSA",
					"alg": "RS256",
					"use": "sig",
					"kid": kid,
					"n":   base64URLEncode(pub.N.Bytes()),
					"e":   base64URLEncode(big.NewInt(int64(pub.E)).Bytes()),
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(jwks)
	})
}

func base64URLEncode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
