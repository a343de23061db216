// Package app wires configuration, storage and the ingestion pipeline
// together for the api, worker and unbiasedctl binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Saul-Punybz/unbiased/internal/cache"
	"github.com/Saul-Punybz/unbiased/internal/config"
	"github.com/Saul-Punybz/unbiased/internal/db"
	"github.com/Saul-Punybz/unbiased/internal/events"
	"github.com/Saul-Punybz/unbiased/internal/feeds"
	"github.com/Saul-Punybz/unbiased/internal/ingest"
	"github.com/Saul-Punybz/unbiased/internal/models"
	"github.com/Saul-Punybz/unbiased/internal/scraper"
	"github.com/Saul-Punybz/unbiased/internal/storage"
)

// App holds the long-lived dependencies of a process.
type App struct {
	Config config.Config
	Pool   *pgxpool.Pool

	Sources  *models.SourceStore
	Articles *models.ArticleStore
	History  *models.UpdateHistoryStore

	Governor *ingest.Governor
	Pipeline *ingest.Pipeline

	Storage *storage.Client
	Cache   *cache.Cache
	Events  *events.Publisher
}

// New connects to the database and builds the pipeline. Object storage,
// Redis and Kafka are optional: a failure to reach them is logged and the
// feature is disabled.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Pool:     pool,
		Sources:  models.NewSourceStore(pool),
		Articles: models.NewArticleStore(pool),
		History:  models.NewUpdateHistoryStore(pool),
	}
	a.Governor = ingest.NewGovernor(a.History, cfg.Ingest.UpdateLimit, cfg.Ingest.UpdateWindow)

	a.Storage, err = storage.NewClient(ctx, cfg.S3)
	if err != nil {
		slog.Warn("app: S3 storage not available, run archive disabled", "err", err)
		a.Storage = &storage.Client{}
	}
	a.Cache, err = cache.New(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("app: redis not available, response cache disabled", "err", err)
		a.Cache = &cache.Cache{}
	}
	a.Events, err = events.NewPublisher(cfg.Kafka)
	if err != nil {
		slog.Warn("app: kafka not available, run events disabled", "err", err)
		a.Events = &events.Publisher{}
	}

	p, err := FeedPipeline(cfg.Ingest)
	if err != nil {
		a.Close()
		return nil, err
	}
	p.Sources = a.Sources
	p.Articles = a.Articles
	p.History = a.History
	p.Governor = a.Governor
	p.StaleRunAfter = cfg.Ingest.StaleRunAfter

	if cfg.Ingest.ImageLookupLimit > 0 {
		p.Images = scraper.NewScraper()
		p.ImageLimit = cfg.Ingest.ImageLookupLimit
	}
	// Interface fields stay nil when the adapter is disabled.
	if a.Storage.Configured() {
		p.Archiver = a.Storage
	}
	if a.Cache.Enabled() {
		p.Cache = a.Cache
	}
	if a.Events.Enabled() {
		p.Publisher = a.Events
	}
	a.Pipeline = p

	return a, nil
}

// Close releases every connection held by the App.
func (a *App) Close() {
	if err := a.Events.Close(); err != nil {
		slog.Warn("app: close kafka producer", "err", err)
	}
	if err := a.Cache.Close(); err != nil {
		slog.Warn("app: close redis", "err", err)
	}
	a.Pool.Close()
}

// Registry returns the YAML registry when a feeds file is configured and the
// built-in catalog otherwise.
func Registry(cfg config.IngestConfig) ingest.Registry {
	if cfg.FeedsFile != "" {
		return &feeds.FileRegistry{Path: cfg.FeedsFile}
	}
	return feeds.NewStaticRegistry(feeds.Default())
}

// FeedPipeline builds a pipeline that can fetch and filter feeds but has no
// storage attached. It is enough for DryRun.
func FeedPipeline(cfg config.IngestConfig) (*ingest.Pipeline, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return &ingest.Pipeline{
		Registry:           Registry(cfg),
		Parser:             scraper.NewFetcher(cfg.FeedTimeout),
		MaxConcurrentFeeds: cfg.MaxConcurrentFeeds,
		Location:           loc,
	}, nil
}
