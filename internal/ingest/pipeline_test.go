package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Saul-Punybz/unbiased/internal/feeds"
	"github.com/Saul-Punybz/unbiased/internal/models"
	"github.com/Saul-Punybz/unbiased/internal/scraper"
)

type pipelineFixture struct {
	pipeline *Pipeline
	history  *memHistory
	sources  *memSources
	articles *memArticles
	parser   *stubParser
	hooks    *recordingHooks
}

func newFixture() *pipelineFixture {
	descs := []feeds.Descriptor{
		{Name: "Alpha", FeedURL: "https://alpha.example/rss", BiasRating: feeds.BiasCenter},
		{Name: "Beta", FeedURL: "https://beta.example/rss", BiasRating: feeds.BiasRight},
	}
	parser := &stubParser{
		results: map[string][]scraper.Article{
			"Alpha": {
				article("Alpha", "fresh", testNow.Add(-time.Hour)),
				article("Alpha", "yesterday", time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC)),
				article("Alpha", "stale", testNow.Add(-72*time.Hour)),
			},
		},
		errs: map[string]error{
			"Beta": &scraper.FeedFetchError{Source: "Beta", Err: errors.New("status 503")},
		},
	}

	h := &memHistory{}
	gov := NewGovernor(h, 3, 24*time.Hour)
	gov.Now = fixedNow
	hooks := &recordingHooks{}

	f := &pipelineFixture{
		history:  h,
		sources:  newMemSources(),
		articles: newMemArticles(),
		parser:   parser,
		hooks:    hooks,
	}
	f.pipeline = &Pipeline{
		Registry:  stubRegistry{list: descs},
		Parser:    parser,
		Sources:   f.sources,
		Articles:  f.articles,
		History:   h,
		Governor:  gov,
		Archiver:  hooks,
		Publisher: hooks,
		Cache:     hooks,
		Now:       fixedNow,
	}
	return f
}

func TestRunCompleted(t *testing.T) {
	f := newFixture()

	res, err := f.pipeline.Run(context.Background(), models.UpdateManual)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != RunCompleted || !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if res.SourcesCreated != 2 || res.ArticlesFetched != 3 || res.ArticlesRecent != 2 || res.ArticlesCreated != 2 {
		t.Errorf("counts = %+v", res)
	}
	if len(res.FeedErrors) != 1 || res.FeedErrors[0].String() != "Beta: status 503" {
		t.Errorf("feed errors = %+v", res.FeedErrors)
	}
	if _, ok := f.articles.byURL["https://news.example/stale"]; ok {
		t.Errorf("stale article persisted")
	}

	rec := f.history.last()
	if rec.Status != models.StatusCompleted || rec.UpdateType != models.UpdateManual {
		t.Errorf("history = %+v", rec)
	}
	if rec.ErrorCount != 1 || rec.ErrorMessages[0] != "Beta: status 503" {
		t.Errorf("history errors = %d %v", rec.ErrorCount, rec.ErrorMessages)
	}
	if rec.ArticlesCreated != 2 || rec.SourcesCreated != 2 {
		t.Errorf("history counts = %+v", rec.RunCounts)
	}
	if res.HistoryID != rec.ID.String() {
		t.Errorf("HistoryID = %q; want %q", res.HistoryID, rec.ID)
	}

	if f.hooks.invalidated != 1 || len(f.hooks.archived) != 1 || len(f.hooks.published) != 1 {
		t.Errorf("hooks = %+v", f.hooks)
	}
}

func TestRunIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.pipeline.Run(ctx, models.UpdateManual); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := f.pipeline.Run(ctx, models.UpdateScheduled)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.ArticlesCreated != 0 || res.ArticlesUpdated != 2 || res.SourcesCreated != 0 || res.SourcesUpdated != 2 {
		t.Errorf("second run counts = %+v", res.RunCounts)
	}
	if len(f.articles.byURL) != 2 || len(f.sources.byDomain) != 2 {
		t.Errorf("rows = %d articles, %d sources", len(f.articles.byURL), len(f.sources.byDomain))
	}
}

func TestRunRejectedBeforeFetch(t *testing.T) {
	f := newFixture()
	oldest := testNow.Add(-20 * time.Hour)
	f.history.add(models.StatusCompleted, oldest)
	f.history.add(models.StatusCompleted, testNow.Add(-10*time.Hour))
	f.history.add(models.StatusCompleted, testNow.Add(-5*time.Hour))

	res, err := f.pipeline.Run(context.Background(), models.UpdateManual)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != RunRejected || res.Success {
		t.Fatalf("result = %+v", res)
	}
	if res.Limit == nil || res.Limit.UpdatesInPeriod != 3 || !res.Limit.AllowUpdateNext.Equal(oldest.Add(24*time.Hour)) {
		t.Errorf("limit = %+v", res.Limit)
	}
	if f.parser.calls != 0 {
		t.Errorf("parser called %d times", f.parser.calls)
	}
	if len(f.history.runs) != 3 {
		t.Errorf("history grew to %d records", len(f.history.runs))
	}
}

func TestRunRejectedAtAdmission(t *testing.T) {
	f := newFixture()
	f.history.beginErr = models.ErrUpdateLimitReached

	res, err := f.pipeline.Run(context.Background(), models.UpdateManual)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != RunRejected || res.Limit == nil || res.Limit.Allowed {
		t.Fatalf("result = %+v", res)
	}
	if f.parser.calls != 0 {
		t.Errorf("parser called")
	}
}

func TestRunBusy(t *testing.T) {
	f := newFixture()
	f.history.add(models.StatusInProgress, testNow.Add(-time.Minute))

	res, err := f.pipeline.Run(context.Background(), models.UpdateManual)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != RunBusy {
		t.Fatalf("status = %s; want busy", res.Status)
	}
	if f.parser.calls != 0 {
		t.Errorf("parser called")
	}
}

func TestRunFatal(t *testing.T) {
	cases := []struct {
		name  string
		setup func(*pipelineFixture)
		is    error
	}{
		{
			name: "registry failure",
			setup: func(f *pipelineFixture) {
				f.pipeline.Registry = stubRegistry{err: errors.New("read feeds.yaml: permission denied")}
			},
		},
		{
			name: "no sources",
			setup: func(f *pipelineFixture) {
				f.pipeline.Registry = stubRegistry{}
			},
			is: ErrNoSources,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture()
			c.setup(f)

			res, err := f.pipeline.Run(context.Background(), models.UpdateManual)
			if res != nil {
				t.Errorf("result = %+v; want nil", res)
			}
			var runErr *RunError
			if !errors.As(err, &runErr) {
				t.Fatalf("err = %v; want *RunError", err)
			}
			if c.is != nil && !errors.Is(err, c.is) {
				t.Errorf("err = %v; want %v", err, c.is)
			}

			rec := f.history.last()
			if rec.ID != runErr.HistoryID {
				t.Errorf("HistoryID = %v; want %v", runErr.HistoryID, rec.ID)
			}
			if rec.Status != models.StatusFailed || rec.ErrorCount != 1 || rec.DurationMs == nil {
				t.Errorf("history = %+v", rec)
			}
			if f.hooks.invalidated != 0 || len(f.hooks.published) != 0 {
				t.Errorf("side effects ran on failure: %+v", f.hooks)
			}
		})
	}
}

func TestRunEverySourceUpsertFails(t *testing.T) {
	f := newFixture()
	f.sources.fail["alpha.example"] = true
	f.sources.fail["beta.example"] = true

	res, err := f.pipeline.Run(context.Background(), models.UpdateManual)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != RunCompleted || !res.Success {
		t.Fatalf("result = %+v; want completed", res)
	}
	if res.SourcesFailed != 2 || res.ArticlesCreated != 0 || res.ArticlesSkipped != res.ArticlesRecent {
		t.Errorf("counts = %+v", res)
	}
	if len(f.articles.byURL) != 0 {
		t.Errorf("orphan articles stored: %d", len(f.articles.byURL))
	}
	if f.history.last().Status != models.StatusCompleted {
		t.Errorf("history status = %s", f.history.last().Status)
	}
}

func TestRunSideEffectFailureKeepsOutcome(t *testing.T) {
	f := newFixture()
	f.hooks.archiveErr = errors.New("bucket missing")

	res, err := f.pipeline.Run(context.Background(), models.UpdateManual)
	if err != nil || res.Status != RunCompleted {
		t.Fatalf("Run = %+v, %v", res, err)
	}
	if f.history.last().Status != models.StatusCompleted {
		t.Errorf("history status = %s", f.history.last().Status)
	}
	if len(f.hooks.published) != 1 {
		t.Errorf("publish skipped after archive failure")
	}
}

func TestDryRun(t *testing.T) {
	f := newFixture()

	res, err := f.pipeline.DryRun(context.Background())
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if res.Sources != 2 || res.Fetched != 3 || len(res.Recent) != 2 || len(res.Errors) != 1 {
		t.Errorf("dry run = %+v", res)
	}
	if !res.Since.Equal(time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Since = %v", res.Since)
	}
	if len(f.history.runs) != 0 || len(f.articles.byURL) != 0 || len(f.sources.byDomain) != 0 {
		t.Errorf("dry run touched storage")
	}
}
