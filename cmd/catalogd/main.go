// Command catalogd serves the bookstore catalog, filtered per caller by the
// authorization policies.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bookstore/internal/platform/config"
	"bookstore/internal/platform/server"
	"bookstore/internal/platform/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Logging
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	shutdown, err := telemetry.Setup(context.Background(), "catalog")
	if err != nil {
		slog.Error("telemetry setup failed", "error", err)
		os.Exit(1)
	}
	metrics, err := telemetry.NewCatalogMetrics()
	if err != nil {
		slog.Error("metrics initialization failed", "error", err)
		os.Exit(1)
	}

	a, err := newApp(ctx, cfg, logger, metrics)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	go a.runCleanup(ctx)

	slog.Info("catalog service starting", "addr", cfg.Addr)
	if err := server.New(cfg.Addr, a.handler, server.WithLogger(logger)).Run(ctx); err != nil {
		slog.Error("server error", "error", err)
	}

	if err := a.close(); err != nil {
		slog.Error("closing redis client", "error", err)
	}
	if err := shutdown(context.Background()); err != nil {
		slog.Error("telemetry shutdown error", "error", err)
	}
}
