package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bookstore/internal/domain"
	"bookstore/internal/gateway"
	"bookstore/internal/gateway/adapter/cognito"
	"bookstore/internal/gateway/adapter/jwks"
	"bookstore/internal/gateway/middleware"
	"bookstore/internal/testutil"
)

type stubVerifier struct {
	id        domain.Identity
	err       error
	lastToken string
	lastAddr  string
}

func (s *stubVerifier) Verify(_ context.Context, token, sourceAddr string) (domain.Identity, error) {
	s.lastToken, s.lastAddr = token, sourceAddr
	if token == "" {
		return domain.UnknownIdentity(), nil
	}
	return s.id, s.err
}

func serveIdentity(t *testing.T, v gateway.IdentityVerifier, header string) domain.Identity {
	t.Helper()
	var captured domain.Identity
	called := false
	handler := middleware.Identity(v, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		captured = gateway.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/product", nil)
	req.RemoteAddr = "198.51.100.4:5555"
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	handler.ServeHTTP(rec, req)

	if !called {
		t.Fatal("expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	return captured
}

func TestIdentityWithCognitoToken(t *testing.T) {
	kid, priv, pub := testutil.GenerateTestKeyPair(t)

	jwksSrv := httptest.NewServer(testutil.MockJWKSHandler(kid, pub))
	defer jwksSrv.Close()

	verifier := cognito.NewVerifier(jwks.NewClient(jwksSrv.URL, time.Minute), cognito.Config{
		Issuer:   testutil.TestIssuer,
		ClientID: testutil.TestClientID,
	}, cognito.DefaultRegions())

	token := testutil.IssueTestToken(t, kid, priv, testutil.UserClaims{
		Username:      "William",
		Role:          "Publishers",
		YearsAsMember: "1",
	}, 15*time.Minute)

	id := serveIdentity(t, verifier, "Bearer "+token)
	if id.Username != "William" {
		t.Errorf("expected username William, got %q", id.Username)
	}
	if id.Role != domain.RolePublisher {
		t.Errorf("expected Publisher, got %v", id.Role)
	}
	if id.Region != "US" {
		t.Errorf("expected region US, got %q", id.Region)
	}
}

func TestIdentityMissingTokenIsUnknown(t *testing.T) {
	v := &stubVerifier{}

	id := serveIdentity(t, v, "")
	if id != domain.UnknownIdentity() {
		t.Errorf("expected unknown identity, got %+v", id)
	}
	if v.lastAddr != "198.51.100.4" {
		t.Errorf("expected source address without port, got %q", v.lastAddr)
	}
}

func TestIdentityInvalidTokenDegrades(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"invalid", domain.ErrInvalidToken},
		{"expired", domain.ErrTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &stubVerifier{
				id:  domain.NewIdentity("Mallory", domain.RoleAdmin, nil, "US"),
				err: tt.err,
			}

			id := serveIdentity(t, v, "Bearer forged")
			if !id.IsUnknown() || id.Username != domain.Unknown {
				t.Errorf("expected unknown identity, got %+v", id)
			}
		})
	}
}

func TestIdentityTokenForms(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"bearer", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"lowercase scheme", "bearer abc.def.ghi", "abc.def.ghi"},
		{"bare token", "abc.def.ghi", "abc.def.ghi"},
		{"basic auth", "Basic dXNlcjpwYXNz", ""},
		{"empty bearer", "Bearer ", ""},
		{"bare scheme", "bearer", ""},
		{"scheme with padding", "Bearer    abc.def.ghi  ", "abc.def.ghi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &stubVerifier{id: domain.NewIdentity("Tom", domain.RoleAdmin, nil, "US")}
			serveIdentity(t, v, tt.header)
			if v.lastToken != tt.want {
				t.Errorf("expected token %q, got %q", tt.want, v.lastToken)
			}
		})
	}
}

func TestIdentityFromContextDefault(t *testing.T) {
	id := gateway.IdentityFromContext(context.Background())
	if id != domain.UnknownIdentity() {
		t.Errorf("expected unknown identity, got %+v", id)
	}
}
