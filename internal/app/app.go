// Package app assembles the storage chain and domain services from
// configuration. Both the API server and the operator CLI start here.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/tryon/tryon/internal/auth"
	"github.com/tryon/tryon/internal/config"
	"github.com/tryon/tryon/internal/kv"
	"github.com/tryon/tryon/internal/kv/memory"
	"github.com/tryon/tryon/internal/kv/postgres"
	kvredis "github.com/tryon/tryon/internal/kv/redis"
	"github.com/tryon/tryon/internal/kv/rest"
	"github.com/tryon/tryon/internal/metrics"
	"github.com/tryon/tryon/internal/quota"
	"github.com/tryon/tryon/internal/registry"
	"github.com/tryon/tryon/internal/usage"
)

// App holds the wired services.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *metrics.InMemoryRecorder
	Store    *kv.Chain
	Local    *memory.Store
	Registry *registry.Registry
	Quota    *quota.Engine
	Usage    *usage.Log
	Login    *auth.LoginIssuer

	cancel context.CancelFunc
}

// New connects the configured backends and builds every service. Backends
// that fail to connect are skipped; the in-memory store is always last.
// Background sweepers run until Close.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)

	recorder := metrics.NewInMemory()
	local := memory.New()
	go local.StartJanitor(ctx, cfg.MemorySweepInterval)

	backends := connectBackends(ctx, cfg, logger)
	for _, b := range backends {
		if pg, ok := b.(*postgres.Store); ok {
			go runSweeper(ctx, cfg.MemorySweepInterval, pg, logger)
		}
	}
	store := kv.NewChain(local, logger, recorder, backends...)
	if cfg.MemoryOnly() {
		logger.Warn("no storage backend configured, running memory-only; data is lost on exit")
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  recorder,
		Store:    store,
		Local:    local,
		Registry: registry.New(store, logger, registry.WithTokenEnv(cfg.TokenEnv())),
		Quota:    quota.New(store, logger, recorder),
		Usage: usage.New(store, logger, recorder,
			usage.WithCaps(cfg.UsageEmbedCap, cfg.UsageGlobalCap),
			usage.WithQueueSize(cfg.UsageQueueSize),
		),
		Login:  auth.NewLoginIssuer(store, logger, auth.WithDefaultTTL(cfg.LoginTokenTTL)),
		cancel: cancel,
	}
}

// Close drains the usage log, stops sweepers and closes every backend.
func (a *App) Close(ctx context.Context) error {
	err := a.Usage.Close(ctx)
	if errors.Is(err, usage.ErrClosed) {
		err = nil
	}
	a.cancel()
	return errors.Join(err, a.Store.Close())
}

// connectBackends opens every configured remote backend in priority order.
func connectBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) []kv.Store {
	var backends []kv.Store

	if cfg.RedisURL != "" {
		s, err := kvredis.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis backend unavailable, skipping",
				slog.String("error", SanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", RedactURL(cfg.RedisURL)),
			)
		} else {
			logger.Info("connected to Redis")
			backends = append(backends, s)
		}
	}

	if cfg.KVRestURL != "" {
		s, err := rest.New(cfg.KVRestURL, cfg.KVRestToken)
		if err != nil {
			logger.Warn("REST backend unavailable, skipping",
				slog.String("error", SanitizeError(err, cfg.KVRestToken)),
				slog.String("kv_rest_url", RedactURL(cfg.KVRestURL)),
			)
		} else {
			logger.Info("REST backend configured", slog.String("kv_rest_url", RedactURL(cfg.KVRestURL)))
			backends = append(backends, s)
		}
	}

	if cfg.DatabaseURL != "" {
		s, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn("postgres backend unavailable, skipping",
				slog.String("error", SanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", RedactURL(cfg.DatabaseURL)),
			)
		} else {
			logger.Info("connected to database")
			backends = append(backends, s)
		}
	}

	return backends
}

// runSweeper deletes expired postgres rows every interval until ctx is done.
func runSweeper(ctx context.Context, interval time.Duration, pg *postgres.Store, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pg.SweepExpired(ctx)
			if err != nil {
				logger.Warn("postgres sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("postgres expired keys swept", "count", n)
			}
		}
	}
}

// NewLogger builds the process logger from configuration and installs it as
// the slog default.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// ParseLogLevel converts string log level to slog.Level.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
