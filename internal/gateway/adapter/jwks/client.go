package jwks

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"bookstore/internal/platform/telemetry"
)

// CognitoEndpoint returns the well-known JWKS URL of a Cognito user pool.
func CognitoEndpoint(region, userPoolID string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s/.well-known/jwks.json", region, userPoolID)
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics records every refresh attempt.
func WithMetrics(m *telemetry.CatalogMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client fetches and caches the user pool's signing keys.
type Client struct {
	endpoint   string
	minRefresh time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *telemetry.CatalogMetrics

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	lastFetch time.Time
}

// NewClient creates a JWKS client that caches keys and won't re-fetch
// more often than minRefresh.
func NewClient(endpoint string, minRefresh time.Duration, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		minRefresh: minRefresh,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default(),
		keys:       make(map[string]*rsa.PublicKey),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetKey returns the public key for the given key ID. An unknown kid triggers
// a refresh, rate limited by minRefresh, to pick up key rotations.
func (c *Client) GetKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok := c.cached(kid); ok {
		return key, nil
	}

	if err := c.refresh(ctx); err != nil {
		return nil, fmt.Errorf("fetching key %q: %w", kid, err)
	}

	key, ok := c.cached(kid)
	if !ok {
		return nil, fmt.Errorf("key ID %q not found in JWKS", kid)
	}
	return key, nil
}

// Ready reports whether at least one signing key is available, fetching the
// key set if none has been loaded yet.
func (c *Client) Ready(ctx context.Context) error {
	c.mu.RLock()
	n := len(c.keys)
	c.mu.RUnlock()
	if n > 0 {
		return nil
	}
	if err := c.refresh(ctx); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.keys) == 0 {
		return errors.New("JWKS contains no usable keys")
	}
	return nil
}

func (c *Client) cached(kid string) (*rsa.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.keys[kid]
	return key, ok
}

func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if !c.lastFetch.IsZero() && time.Since(c.lastFetch) < c.minRefresh {
		return nil
	}

	keys, err := c.fetch(ctx)
	if err != nil {
		c.record(ctx, "failure")
		return err
	}

	c.keys = keys
	c.lastFetch = time.Now()
	c.record(ctx, "success")
	c.logger.Debug("JWKS refreshed", "endpoint", c.endpoint, "keys", len(keys))
	return nil
}

func (c *Client) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating JWKS request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned %d", resp.StatusCode)
	}

	var set keySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("decoding JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		// Cognito always publishes alg; other issuers may leave it out.
		if k.Kty != "RSA" || (k.Alg != "" && k.Alg != "RS256") || (k.Use != "" && k.Use != "sig") {
			c.logger.Debug("skipping JWKS key", "kid", k.Kid, "kty", k.Kty, "alg", k.Alg, "use", k.Use)
			continue
		}
		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			c.logger.Warn("failed to parse JWKS key", "kid", k.Kid, "error", err)
			continue
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

func (c *Client) record(ctx context.Context, result string) {
	if c.metrics != nil {
		c.metrics.RecordJWKSRefresh(ctx, result)
	}
}

type keySet struct {
	Keys []jsonWebKey `json:"keys"`
}

type jsonWebKey struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("decoding n: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("decoding e: %w", err)
	}
	if len(nBytes) == 0 || len(eBytes) == 0 {
		return nil, errors.New("empty modulus or exponent")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
