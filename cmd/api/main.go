// Command api starts the Unbiased HTTP API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/Saul-Punybz/unbiased/internal/app"
	"github.com/Saul-Punybz/unbiased/internal/config"
	"github.com/Saul-Punybz/unbiased/internal/handlers"
	"github.com/Saul-Punybz/unbiased/internal/logger"
	"github.com/Saul-Punybz/unbiased/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(os.Stdout, logger.Text, cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	// Handlers.
	healthHandler := &handlers.HealthHandler{DB: a.Pool}
	articlesHandler := &handlers.ArticlesHandler{
		Articles: a.Articles,
		Cache:    a.Cache,
	}
	sourcesHandler := &handlers.SourcesHandler{Sources: a.Sources}
	updatesHandler := &handlers.UpdatesHandler{
		Pipeline:   a.Pipeline,
		Governor:   a.Governor,
		History:    a.History,
		RunTimeout: cfg.Ingest.RunTimeout,
	}
	feedHandler := &handlers.FeedHandler{Articles: a.Articles}

	// Router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))
	r.Use(middleware.RateLimit(cfg.Server.RatePerSec, cfg.Server.RateBurst))

	r.Get("/api/health", healthHandler.Health)

	// Reads.
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(60 * time.Second))

		r.Get("/api/articles", articlesHandler.ListArticles)
		r.Get("/api/articles/bias-distribution", articlesHandler.GetBiasDistribution)
		r.Get("/api/sources", sourcesHandler.ListSources)
		r.Get("/api/update/limit", updatesHandler.GetLimit)
		r.Get("/api/update/history", updatesHandler.ListHistory)
		r.Get("/feed.xml", feedHandler.ServeFeed)
	})

	// Manual update. A run outlives the read timeout, so it is mounted
	// outside that group.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminToken(cfg.Admin.TokenHash))
		r.Post("/api/update", updatesHandler.TriggerUpdate)
	})

	// Start server.
	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Ingest.RunTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}

	slog.Info("server stopped")
}
