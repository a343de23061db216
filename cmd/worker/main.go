// Command worker runs scheduled Unbiased ingestion. Each cron tick starts a
// pipeline run of type "scheduled", subject to the same rate limit as manual
// updates.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/Saul-Punybz/unbiased/internal/app"
	"github.com/Saul-Punybz/unbiased/internal/config"
	"github.com/Saul-Punybz/unbiased/internal/ingest"
	"github.com/Saul-Punybz/unbiased/internal/logger"
	"github.com/Saul-Punybz/unbiased/internal/models"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(os.Stdout, logger.JSON, cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		slog.Error("worker: invalid configuration", "err", err)
		os.Exit(1)
	}

	slog.Info("worker: starting unbiased worker")

	// Create a root context that is cancelled on shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("worker: startup failed", "err", err)
		os.Exit(1)
	}

	var jobs inflight

	run := func() {
		if !jobs.start() {
			slog.Info("worker: shutting down, update skipped")
			return
		}
		defer jobs.done()

		jobCtx, jobCancel := context.WithTimeout(ctx, cfg.Ingest.RunTimeout)
		defer jobCancel()
		runScheduled(jobCtx, a.Pipeline)
	}

	// Standard 5-field cron expression; overlapping ticks are skipped.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.Ingest.Schedule, func() {
		slog.Info("cron: update job triggered")
		run()
	}); err != nil {
		slog.Error("worker: add update cron", "schedule", cfg.Ingest.Schedule, "err", err)
		os.Exit(1)
	}

	c.Start()
	slog.Info("worker: cron scheduler started",
		"schedule", cfg.Ingest.Schedule,
		"jobs", len(c.Entries()),
	)

	// Run once on startup so a fresh deployment has articles before the
	// first tick. The governor rejects it if the window is already full.
	go func() {
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
			return
		}

		slog.Info("worker: running initial update on startup")
		run()
	}()

	// ── Graceful Shutdown ──────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	slog.Info("worker: received shutdown signal", "signal", sig.String())

	// Stop accepting new cron jobs.
	slog.Info("worker: stopping cron scheduler")
	cronCtx := c.Stop()

	// Cancel the root context to signal all in-flight jobs to stop.
	cancel()

	select {
	case <-cronCtx.Done():
		slog.Info("worker: cron scheduler stopped")
	case <-time.After(30 * time.Second):
		slog.Warn("worker: cron scheduler stop timed out")
	}

	if jobs.closeAndWait(60 * time.Second) {
		slog.Info("worker: all in-flight jobs complete")
	} else {
		slog.Warn("worker: timed out waiting for in-flight jobs")
	}

	a.Close()
	slog.Info("worker: shutdown complete")
}

// runScheduled performs one scheduled run and logs its outcome.
func runScheduled(ctx context.Context, p *ingest.Pipeline) {
	res, err := p.Run(ctx, models.UpdateScheduled)
	if err != nil {
		var runErr *ingest.RunError
		if errors.As(err, &runErr) {
			slog.Error("worker: scheduled run failed", "run", runErr.HistoryID, "err", runErr.Err)
			return
		}
		slog.Error("worker: scheduled run not started", "err", err)
		return
	}

	switch res.Status {
	case ingest.RunRejected:
		attrs := []any{"count", res.Limit.UpdatesInPeriod, "limit", res.Limit.UpdateLimit}
		if res.Limit.AllowUpdateNext != nil {
			attrs = append(attrs, "next", res.Limit.AllowUpdateNext.Format(time.RFC3339))
		}
		slog.Info("worker: scheduled run skipped, rate limit reached", attrs...)
	case ingest.RunBusy:
		slog.Info("worker: scheduled run skipped, another run in progress")
	default:
		slog.Info("worker: scheduled run completed",
			"run", res.HistoryID,
			"articles_created", res.ArticlesCreated,
			"articles_updated", res.ArticlesUpdated,
			"feed_errors", len(res.FeedErrors),
		)
	}
}
