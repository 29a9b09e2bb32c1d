// Command mockidentity issues Cognito shaped ID tokens for the demo users so
// the catalog service can run without a real user pool.
package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"bookstore/internal/platform/server"
)

type config struct {
	Addr     string        `env:"IDENTITY_ADDR" envDefault:":8081"`
	Issuer   string        `env:"TOKEN_ISSUER" envDefault:"http://localhost:8081"`
	ClientID string        `env:"USER_POOL_CLIENT_ID" envDefault:"mock-client"`
	TTL      time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := env.ParseAs[config]()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		slog.Error("generating RSA key", "error", err)
		os.Exit(1)
	}
	is := &issuer{
		kid:      fmt.Sprintf("mock-key-%d", time.Now().Unix()),
		priv:     priv,
		iss:      cfg.Issuer,
		clientID: cfg.ClientID,
		ttl:      cfg.TTL,
		users:    demoUsers,
	}

	slog.Info("mock identity service starting",
		"addr", cfg.Addr,
		"issuer", cfg.Issuer,
		"kid", is.kid,
		"users", len(is.users),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg.Addr, is.routes()).Run(ctx); err != nil {
		slog.Error("server error", "error", err)
	}
}
