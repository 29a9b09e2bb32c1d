package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"bookstore/internal/authz"
	"bookstore/internal/catalog"
	gw "bookstore/internal/gateway"
	"bookstore/internal/gateway/adapter/avp"
	"bookstore/internal/gateway/adapter/cedarlocal"
	"bookstore/internal/gateway/adapter/cognito"
	"bookstore/internal/gateway/adapter/inmem"
	"bookstore/internal/gateway/adapter/jwks"
	"bookstore/internal/gateway/adapter/redislimit"
	"bookstore/internal/gateway/middleware"
	"bookstore/internal/gateway/products"
	"bookstore/internal/platform/config"
	"bookstore/internal/platform/telemetry"
)

const maxBodyBytes = 1 << 20 // 1MB

// decisionBackend is what a decision backend provides: verdicts and the
// descriptions of the policies behind them.
type decisionBackend interface {
	authz.DecisionService
	authz.PolicyRegistry
}

// app is the assembled service.
type app struct {
	handler http.Handler
	limiter *inmem.RateLimiter
	redis   *redis.Client
}

// newApp wires every component from cfg. metrics may be nil.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *telemetry.CatalogMetrics) (*app, error) {
	src, err := catalog.ParseSource(ctx, cfg.CatalogSource, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	store, err := catalog.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("loading catalog from %s: %w", src, err)
	}
	logger.Info("catalog loaded", "source", src.String(), "items", store.Len())

	backend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	authorizer := authz.New(authz.Config{
		Store:        store,
		Decisions:    backend,
		Registry:     backend,
		Capabilities: cfg.Capabilities,
		Resources:    cfg.Resources,
		Logger:       logger,
		Metrics:      metrics,
	})

	endpoint, issuer := cfg.JWKSEndpoint, cfg.TokenIssuer
	if endpoint == "" {
		endpoint = jwks.CognitoEndpoint(cfg.AWSRegion, cfg.UserPoolID)
	}
	if issuer == "" {
		issuer = cognito.Issuer(cfg.AWSRegion, cfg.UserPoolID)
	}
	keys := jwks.NewClient(endpoint, cfg.JWKSMinRefresh, jwks.WithMetrics(metrics), jwks.WithLogger(logger))
	verifier := cognito.NewVerifier(keys, cognito.Config{Issuer: issuer, ClientID: cfg.UserPoolClientID},
		cognito.StaticRegions{Overrides: cfg.RegionOverrides, Default: cfg.DefaultRegion})

	a := &app{limiter: inmem.NewRateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst, nil)}
	var limiter gw.RateLimiter = a.limiter
	checks := map[string]products.ReadyCheck{"jwks": keys.Ready}
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		shared := redislimit.New(a.redis, cfg.RateLimit.Limit, cfg.RateLimit.Window, a.limiter, logger)
		limiter = shared
		checks["redis"] = shared.Ping
	}

	router := products.NewRouter(authorizer, checks, logger)

	var corsLayer middleware.Middleware
	if cfg.AllowedOrigin != "" {
		corsLayer = middleware.CORS(cfg.AllowedOrigin)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.MetricsHandler())
	mux.Handle("/", middleware.Chain(
		router,
		middleware.Metrics(metrics, "/product", "/healthz", "/readyz"),
		middleware.RequestID,
		corsLayer,
		middleware.Recovery(logger),
		middleware.MaxBodySize(maxBodyBytes),
		middleware.Identity(verifier, logger, metrics),
		middleware.Logging(logger),
		middleware.RateLimit(limiter, middleware.ByCaller, metrics),
	))
	a.handler = mux

	logger.Info("catalog service wired",
		"backend", cfg.DecisionBackend,
		"capabilities", cfg.Capabilities.String(),
		"jwks_endpoint", endpoint,
		"shared_rate_limit", cfg.RedisAddr != "",
	)
	return a, nil
}

func newBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (decisionBackend, error) {
	switch cfg.DecisionBackend {
	case config.BackendAVP:
		c, err := avp.NewFromConfig(ctx, cfg.AWSRegion, cfg.PolicyStoreID, cfg.AVPMaxAttempts)
		if err != nil {
			return nil, fmt.Errorf("creating verified permissions client: %w", err)
		}
		return c, nil
	case config.BackendLocal:
		e, err := cedarlocal.Load(cfg.LocalPolicyFile, logger)
		if err != nil {
			return nil, fmt.Errorf("loading local policies: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown decision backend %q", cfg.DecisionBackend)
	}
}

// runCleanup evicts idle rate limit buckets until ctx is done.
func (a *app) runCleanup(ctx context.Context) {
	a.limiter.RunCleanup(ctx, 5*time.Minute)
}

func (a *app) close() error {
	if a.redis == nil {
		return nil
	}
	if err := a.redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
