package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Saul-Punybz/unbiased/internal/feeds"
	"github.com/Saul-Punybz/unbiased/internal/models"
	"github.com/Saul-Punybz/unbiased/internal/scraper"
)

// ErrNoSources is returned when the registry yields an empty source list.
var ErrNoSources = errors.New("no sources configured")

// Registry supplies the sources to ingest.
type Registry interface {
	Sources(ctx context.Context) ([]feeds.Descriptor, error)
}

// History records the lifecycle of each run.
type History interface {
	CompletedRuns
	Begin(ctx context.Context, p models.BeginParams) (*models.UpdateHistory, error)
	Complete(ctx context.Context, id uuid.UUID, completedAt time.Time, durationMs int64, counts models.RunCounts, messages []string) error
	Fail(ctx context.Context, id uuid.UUID, completedAt time.Time, durationMs int64, message string) error
}

// ImageResolver fills in missing article images.
type ImageResolver interface {
	FillImages(ctx context.Context, articles []scraper.Article, limit int) int
}

// RunArchiver stores a report of a completed run.
type RunArchiver interface {
	ArchiveRun(ctx context.Context, runID string, at time.Time, report any) error
}

// RunPublisher announces a completed run.
type RunPublisher interface {
	PublishRunCompleted(ctx context.Context, runID string, result any) error
}

// CacheInvalidator drops cached article listings.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// RunStatus is the outcome class of Pipeline.Run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunRejected  RunStatus = "rejected" // rate limit reached
	RunBusy      RunStatus = "busy"     // another run in progress
)

// RunResult describes a run that did not fail fatally.
type RunResult struct {
	Status     RunStatus         `json:"status"`
	Success    bool              `json:"success"`
	HistoryID  string            `json:"historyId,omitempty"`
	UpdateType models.UpdateType `json:"updateType"`
	Limit      *LimitStatus      `json:"limit,omitempty"`

	SourcesTotal    int `json:"sourcesTotal"`
	SourcesFailed   int `json:"sourcesFailed"`
	ArticlesFetched int `json:"articlesFetched"`
	ArticlesRecent  int `json:"articlesRecent"`
	ImagesResolved  int `json:"imagesResolved"`
	models.RunCounts

	FeedErrors []scraper.FeedError `json:"errors"`
	DurationMs int64               `json:"durationMs"`
}

// RunError is returned when an admitted run fails fatally. The run's history
// record has been moved to failed.
type RunError struct {
	HistoryID uuid.UUID
	Err       error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("ingest: run %s failed: %v", e.HistoryID, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// runReport is what gets archived for a completed run.
type runReport struct {
	Result   *RunResult        `json:"result"`
	Articles []scraper.Article `json:"articles"`
}

// Pipeline wires the ingestion stages together. Images, Archiver, Publisher
// and Cache are optional.
type Pipeline struct {
	Registry Registry
	Parser   scraper.FeedParser
	Sources  SourceUpserter
	Articles ArticleUpserter
	History  History
	Governor *Governor

	MaxConcurrentFeeds int
	Location           *time.Location
	StaleRunAfter      time.Duration

	Images     ImageResolver
	ImageLimit int

	Archiver  RunArchiver
	Publisher RunPublisher
	Cache     CacheInvalidator

	Now func() time.Time
}

// Run executes one ingestion run of the given type. Rate-limited and busy
// outcomes are results, not errors. A fatal failure after admission returns
// a *RunError.
func (p *Pipeline) Run(ctx context.Context, typ models.UpdateType) (*RunResult, error) {
	status, err := p.Governor.Check(ctx)
	if err != nil {
		return nil, err
	}
	if !status.Allowed {
		slog.Info("pipeline: update rejected by rate limit",
			"type", typ, "count", status.UpdatesInPeriod, "limit", status.UpdateLimit)
		return &RunResult{Status: RunRejected, UpdateType: typ, Limit: &status}, nil
	}

	rec, err := p.History.Begin(ctx, models.BeginParams{
		Type:       typ,
		Now:        p.now(),
		Limit:      p.Governor.Limit,
		Window:     p.Governor.Window,
		StaleAfter: p.StaleRunAfter,
	})
	switch {
	case errors.Is(err, models.ErrUpdateLimitReached):
		st, cerr := p.Governor.Check(ctx)
		if cerr != nil {
			st = LimitStatus{UpdatesInPeriod: p.Governor.Limit, UpdateLimit: p.Governor.Limit}
		}
		st.Allowed = false
		return &RunResult{Status: RunRejected, UpdateType: typ, Limit: &st}, nil
	case errors.Is(err, models.ErrRunInProgress):
		slog.Info("pipeline: update already in progress", "type", typ)
		return &RunResult{Status: RunBusy, UpdateType: typ}, nil
	case err != nil:
		return nil, fmt.Errorf("ingest: begin run: %w", err)
	}

	log := slog.With("run", rec.ID, "type", typ)
	log.Info("pipeline: run started")

	result, articles, runErr := p.execute(ctx, rec)

	// The terminal transition is recorded even if ctx was cancelled.
	finishCtx := context.WithoutCancel(ctx)
	finishedAt := p.now()
	durationMs := finishedAt.Sub(rec.StartedAt).Milliseconds()

	if runErr == nil {
		messages := make([]string, len(result.FeedErrors))
		for i, fe := range result.FeedErrors {
			messages[i] = fe.String()
		}
		if err := p.History.Complete(finishCtx, rec.ID, finishedAt, durationMs, result.RunCounts, messages); err != nil {
			runErr = fmt.Errorf("record completion: %w", err)
		}
	}

	if runErr != nil {
		log.Error("pipeline: run failed", "err", runErr, "duration_ms", durationMs)
		if err := p.History.Fail(finishCtx, rec.ID, finishedAt, durationMs, runErr.Error()); err != nil {
			log.Error("pipeline: record failure", "err", err)
		}
		return nil, &RunError{HistoryID: rec.ID, Err: runErr}
	}

	result.Status = RunCompleted
	result.Success = true
	result.DurationMs = durationMs

	log.Info("pipeline: run completed",
		"duration_ms", durationMs,
		"sources_created", result.SourcesCreated,
		"sources_updated", result.SourcesUpdated,
		"articles_created", result.ArticlesCreated,
		"articles_updated", result.ArticlesUpdated,
		"articles_skipped", result.ArticlesSkipped,
		"feed_errors", len(result.FeedErrors),
	)

	p.afterRun(finishCtx, rec, result, articles)
	return result, nil
}

// execute runs the stages of an admitted run.
func (p *Pipeline) execute(ctx context.Context, rec *models.UpdateHistory) (*RunResult, []scraper.Article, error) {
	sources, agg, recent, err := p.collect(ctx, rec.StartedAt)
	if err != nil {
		return nil, nil, err
	}

	result := &RunResult{
		HistoryID:       rec.ID.String(),
		UpdateType:      rec.UpdateType,
		SourcesTotal:    len(sources),
		ArticlesFetched: len(agg.Articles),
		ArticlesRecent:  len(recent),
		FeedErrors:      agg.Errors,
	}
	if result.FeedErrors == nil {
		result.FeedErrors = []scraper.FeedError{}
	}

	if p.Images != nil && p.ImageLimit > 0 {
		result.ImagesResolved = p.Images.FillImages(ctx, recent, p.ImageLimit)
	}

	sr := UpsertSources(ctx, p.Sources, sources)
	result.SourcesCreated = sr.SourcesCreated
	result.SourcesUpdated = sr.SourcesUpdated
	result.SourcesFailed = sr.SourcesFailed
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("run interrupted: %w", err)
	}
	if len(sr.SourceMap) == 0 {
		slog.Warn("pipeline: no source resolved; every article will be skipped", "sources", len(sources))
	}

	ar := UpsertArticles(ctx, p.Articles, recent, sr.SourceMap)
	result.ArticlesCreated = ar.ArticlesCreated
	result.ArticlesUpdated = ar.ArticlesUpdated
	result.ArticlesSkipped = ar.ArticlesSkipped

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("run interrupted: %w", err)
	}
	return result, recent, nil
}

// collect loads the registry, aggregates every feed and keeps the articles
// published since the start of the previous day.
func (p *Pipeline) collect(ctx context.Context, now time.Time) ([]feeds.Descriptor, scraper.Aggregate, []scraper.Article, error) {
	sources, err := p.Registry.Sources(ctx)
	if err != nil {
		return nil, scraper.Aggregate{}, nil, fmt.Errorf("load registry: %w", err)
	}
	if len(sources) == 0 {
		return nil, scraper.Aggregate{}, nil, ErrNoSources
	}

	agg := scraper.ParseMultipleFeeds(ctx, p.Parser, sources, p.MaxConcurrentFeeds)
	if err := ctx.Err(); err != nil {
		return nil, scraper.Aggregate{}, nil, fmt.Errorf("run interrupted: %w", err)
	}

	start := scraper.StartOfPreviousDay(now, p.Location)
	recent := scraper.FilterWithinRange(agg.Articles, start, nil)
	slog.Info("pipeline: recency filter applied",
		"since", start, "fetched", len(agg.Articles), "kept", len(recent))

	return sources, agg, recent, nil
}

// DryRunResult is the outcome of fetching every feed without persisting.
type DryRunResult struct {
	Sources  int                 `json:"sources"`
	Fetched  int                 `json:"fetched"`
	Recent   []scraper.Article   `json:"recent"`
	Errors   []scraper.FeedError `json:"errors"`
	Since    time.Time           `json:"since"`
	Duration time.Duration       `json:"duration"`
}

// DryRun fetches, aggregates and filters every feed without touching storage
// or run history.
func (p *Pipeline) DryRun(ctx context.Context) (*DryRunResult, error) {
	started := p.now()
	sources, agg, recent, err := p.collect(ctx, started)
	if err != nil {
		return nil, fmt.Errorf("ingest: dry run: %w", err)
	}
	return &DryRunResult{
		Sources:  len(sources),
		Fetched:  len(agg.Articles),
		Recent:   recent,
		Errors:   agg.Errors,
		Since:    scraper.StartOfPreviousDay(started, p.Location),
		Duration: p.now().Sub(started),
	}, nil
}

// afterRun performs best-effort side effects of a completed run.
func (p *Pipeline) afterRun(ctx context.Context, rec *models.UpdateHistory, result *RunResult, articles []scraper.Article) {
	id := rec.ID.String()

	if p.Cache != nil {
		if err := p.Cache.Invalidate(ctx); err != nil {
			slog.Warn("pipeline: cache invalidation failed", "run", id, "err", err)
		}
	}
	if p.Archiver != nil {
		report := runReport{Result: result, Articles: articles}
		if err := p.Archiver.ArchiveRun(ctx, id, rec.StartedAt, report); err != nil {
			slog.Warn("pipeline: archive failed", "run", id, "err", err)
		}
	}
	if p.Publisher != nil {
		if err := p.Publisher.PublishRunCompleted(ctx, id, result); err != nil {
			slog.Warn("pipeline: publish failed", "run", id, "err", err)
		}
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
