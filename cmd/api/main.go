// Package main is the entrypoint for the try-on storage and quota API server.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tryon/tryon/internal/app"
	"github.com/tryon/tryon/internal/config"
	"github.com/tryon/tryon/internal/handler"
	"github.com/tryon/tryon/internal/middleware"
	"github.com/tryon/tryon/internal/quota"
	"github.com/tryon/tryon/internal/server"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, os.Stdout)
	a := app.New(ctx, cfg, logger)

	// Handlers
	h := handler.New(a.Registry, a.Quota, a.Usage, logger)
	checkers := make([]handler.HealthChecker, 0, len(a.Store.Backends()))
	for _, b := range a.Store.Backends() {
		checkers = append(checkers, b)
	}
	healthHandler := handler.NewHealthHandler(cfg.IsProduction() && !cfg.MemoryOnly(), checkers...)
	metricsHandler := handler.NewMetricsHandler(a.Metrics)

	r := setupRouter(h, healthHandler, metricsHandler, a, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	srv.OnShutdown("app", a.Close)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"store", a.Store.Name(),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	metricsHandler *handler.MetricsHandler,
	a *app.App,
	logger *slog.Logger,
) *chi.Mux {
	cfg := a.Config
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(cfg.IsDevelopment()))

	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	r.Route("/v1/embeds", func(r chi.Router) {
		r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.GetCORSAllowedOrigins())))
		r.With(
			middleware.ValidateURLParam("id"),
			middleware.RateLimitEmbed(middleware.RateLimitConfig{
				Logger:  logger,
				Limiter: a.Quota,
				Usage:   a.Usage,
				Scope:   quota.ScopeConfigView,
				Limit:   cfg.RateLimitConfigPerMinute,
			}),
		).Get("/{id}", h.GetEmbedConfig)
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
