package main

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bookstore/internal/domain"
)

// demoUser is one seeded account. Tenure is omitted from the token when nil.
type demoUser struct {
	Password string
	Role     string
	Tenure   *int
}

func years(n int) *int { return &n }

// demoUsers mirrors the user pool of the demo deployment.
var demoUsers = map[string]demoUser{
	"Tom":     {Password: "tom", Role: "Admin"},
	"Andrew":  {Password: "andrew", Role: "Customer", Tenure: years(3)},
	"Susan":   {Password: "susan", Role: "Customer", Tenure: years(1)},
	"Toby":    {Password: "toby", Role: "Customer"},
	"Dante":   {Password: "dante", Role: "Publisher"},
	"William": {Password: "william", Role: "Publisher"},
}

type tokenResponse struct {
	IDToken   string `json:"id_token"`
	ExpiresIn int    `json:"expires_in"`
	TokenType string `json:"token_type"`
}

// issuer signs Cognito shaped ID tokens and serves the matching JWKS.
type issuer struct {
	kid      string
	priv     *rsa.PrivateKey
	iss      string
	clientID string
	ttl      time.Duration
	users    map[string]demoUser
}

func (is *issuer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/jwks.json", is.jwks)
	mux.HandleFunc("POST /auth/token", is.token)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "mock-identity"})
	})
	return mux
}

func (is *issuer) jwks(w http.ResponseWriter, _ *http.Request) {
	pub := &is.priv.PublicKey
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": is.kid,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (is *issuer) token(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	u, ok := is.users[req.Username]
	if !ok || u.Password != req.Password {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}

	signed, err := is.sign(req.Username, u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to sign token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		IDToken:   signed,
		ExpiresIn: int(is.ttl.Seconds()),
		TokenType: "Bearer",
	})
}

func (is *issuer) sign(username string, u demoUser) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":              "mock-" + username,
		"cognito:username": username,
		"custom:role":      u.Role,
		"token_use":        "id",
		"aud":              is.clientID,
		"iss":              is.iss,
		"iat":              now.Unix(),
		"exp":              now.Add(is.ttl).Unix(),
	}
	if u.Tenure != nil {
		claims["custom:yearsAsMember"] = strconv.Itoa(*u.Tenure)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = is.kid
	return token.SignedString(is.priv)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, domain.ErrorResponse{Error: code, Message: msg})
}
