// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"bookstore/internal/authz"
	"bookstore/internal/domain"
)

// Decision backends.
const (
	BackendAVP   = "avp"
	BackendLocal = "local"
)

// Config holds all configuration for the catalog service.
type Config struct {
	Addr          string `env:"CATALOG_ADDR" envDefault:":8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	CatalogSource string `env:"CATALOG_SOURCE" envDefault:"data/catalog.json"`
	AllowedOrigin string `env:"ALLOWED_ORIGIN"`

	DecisionBackend string `env:"DECISION_BACKEND" envDefault:"local"`
	PolicyStoreID   string `env:"POLICY_STORE_ID"`
	AWSRegion       string `env:"AWS_REGION" envDefault:"us-east-1"`
	AVPMaxAttempts  int    `env:"AVP_MAX_ATTEMPTS" envDefault:"3"`
	LocalPolicyFile string `env:"LOCAL_POLICY_FILE" envDefault:"data/policies.yaml"`

	UserPoolID       string        `env:"USER_POOL_ID"`
	UserPoolClientID string        `env:"USER_POOL_CLIENT_ID"`
	JWKSEndpoint     string        `env:"JWKS_ENDPOINT"`
	TokenIssuer      string        `env:"TOKEN_ISSUER"`
	JWKSMinRefresh   time.Duration `env:"JWKS_MIN_REFRESH" envDefault:"5m"`

	CapabilitiesRaw string `env:"AUTHZ_CAPABILITIES" envDefault:"all"`
	// PublisherBooks maps a publisher to the item their single query is scoped to.
	PublisherBooks map[string]string `env:"PUBLISHER_BOOKS" envSeparator:"," envKeyValSeparator:"=" envDefault:"Dante=fn2padaa-c33l-4ea8-ll44-g7n217604p4n"`
	// BatchResources is kept as a list so batch order follows the configuration.
	BatchResources  []string          `env:"BATCH_RESOURCES" envSeparator:"," envDefault:"em1oadaa-b22k-4ea8-kk33-f6m217604o3m=William,fn2padaa-c33l-4ea8-ll44-g7n217604p4n=Dante"`
	RegionOverrides map[string]string `env:"REGION_OVERRIDES" envSeparator:"," envKeyValSeparator:"=" envDefault:"Toby=UK"`
	DefaultRegion   string            `env:"DEFAULT_REGION" envDefault:"US"`

	RateLimit RateLimitConfig
	RedisAddr string `env:"REDIS_ADDR"`

	// Populated by Load from the raw fields above.
	Capabilities authz.Capabilities
	Resources    authz.Resources
}

// RateLimitConfig holds the limiter parameters. Rate and Burst drive the
// per-process token buckets; Limit and Window the shared Redis window.
type RateLimitConfig struct {
	Rate   float64       `env:"RATE_LIMIT_RATE" envDefault:"100"`
	Burst  int           `env:"RATE_LIMIT_BURST" envDefault:"20"`
	Limit  int           `env:"RATE_LIMIT_WINDOW_LIMIT" envDefault:"200"`
	Window time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1s"`
}

// Load reads configuration from environment variables, falling back to defaults.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}

	if cfg.Capabilities, err = authz.ParseCapabilities(cfg.CapabilitiesRaw); err != nil {
		return Config{}, err
	}
	batch, err := parseOwners(cfg.BatchResources)
	if err != nil {
		return Config{}, err
	}
	cfg.Resources = authz.Resources{PublisherBooks: cfg.PublisherBooks, Batch: batch}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	switch c.DecisionBackend {
	case BackendAVP:
		if c.PolicyStoreID == "" {
			errs = append(errs, errors.New("POLICY_STORE_ID is required for the avp backend"))
		}
	case BackendLocal:
		if c.LocalPolicyFile == "" {
			errs = append(errs, errors.New("LOCAL_POLICY_FILE is required for the local backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DECISION_BACKEND %q", c.DecisionBackend))
	}
	if c.UserPoolID == "" && (c.JWKSEndpoint == "" || c.TokenIssuer == "") {
		errs = append(errs, errors.New("USER_POOL_ID, or both JWKS_ENDPOINT and TOKEN_ISSUER, must be set"))
	}
	if c.RateLimit.Rate <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RATE and RATE_LIMIT_BURST must be positive"))
	}
	return errors.Join(errs...)
}

func parseOwners(entries []string) ([]domain.ResourceOwner, error) {
	out := make([]domain.ResourceOwner, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		id, owner, ok := strings.Cut(e, "=")
		if !ok || id == "" || owner == "" {
			return nil, fmt.Errorf("invalid BATCH_RESOURCES entry %q, want bookId=owner", e)
		}
		out = append(out, domain.ResourceOwner{ResourceID: id, Owner: owner})
	}
	return out, nil
}
