package ingest

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/Saul-Punybz/unbiased/internal/feeds"
	"github.com/Saul-Punybz/unbiased/internal/scraper"
)

func TestUpsertSources(t *testing.T) {
	store := newMemSources()
	store.fail["broken.example"] = true

	descs := []feeds.Descriptor{
		{Name: "Alpha", FeedURL: "https://www.alpha.example/rss", BiasRating: feeds.BiasCenter},
		{Name: "Bad URL", FeedURL: "not a url", BiasRating: feeds.BiasLeft},
		{Name: "Broken", FeedURL: "https://broken.example/rss", BiasRating: feeds.BiasRight},
		{Name: "Beta", FeedURL: "https://beta.example/feed", BiasRating: feeds.BiasLeanLeft},
	}

	res := UpsertSources(context.Background(), store, descs)
	if res.SourcesCreated != 2 || res.SourcesUpdated != 0 || res.SourcesFailed != 2 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.SourceMap) != 2 || res.SourceMap["Alpha"] == uuid.Nil || res.SourceMap["Beta"] == uuid.Nil {
		t.Fatalf("source map = %v", res.SourceMap)
	}

	alpha := store.byDomain["alpha.example"]
	if alpha == nil || alpha.Reliability != feeds.ReliabilityVeryHigh {
		t.Fatalf("alpha stored as %+v", alpha)
	}

	// Rerun: same ids, counted as updates.
	descs[0].Name = "Alpha News"
	again := UpsertSources(context.Background(), store, descs)
	if again.SourcesCreated != 0 || again.SourcesUpdated != 2 {
		t.Fatalf("second result = %+v", again)
	}
	if again.SourceMap["Alpha News"] != res.SourceMap["Alpha"] {
		t.Errorf("domain upsert changed id")
	}
	if store.byDomain["alpha.example"].Name != "Alpha News" {
		t.Errorf("name not overwritten")
	}
}

func TestUpsertArticles(t *testing.T) {
	store := newMemArticles()
	srcID := uuid.New()
	sm := SourceMap{"Alpha": srcID}

	good := article("Alpha", "budget", testNow)
	orphan := article("Unknown", "orphan", testNow)
	failing := article("Alpha", "failing", testNow)
	store.fail[failing.URL] = true

	res := UpsertArticles(context.Background(), store, []scraper.Article{good, orphan, failing}, sm)
	if res.ArticlesCreated != 1 || res.ArticlesUpdated != 0 || res.ArticlesSkipped != 2 {
		t.Fatalf("result = %+v", res)
	}
	if _, ok := store.byURL[orphan.URL]; ok {
		t.Errorf("orphan article persisted")
	}

	row := store.byURL[good.URL]
	if row.SourceID != srcID {
		t.Errorf("SourceID = %v; want %v", row.SourceID, srcID)
	}
	wantKw := []string{"senate", "debates", "budget", "lawmakers", "argue", "about"}
	if !reflect.DeepEqual(row.Keywords, wantKw) {
		t.Errorf("keywords = %v; want %v", row.Keywords, wantKw)
	}

	// Same URL again: an update, keywords recomputed.
	good.Title = "Budget vote delayed"
	again := UpsertArticles(context.Background(), store, []scraper.Article{good}, sm)
	if again.ArticlesCreated != 0 || again.ArticlesUpdated != 1 {
		t.Fatalf("second result = %+v", again)
	}
	if len(store.byURL) != 1 {
		t.Errorf("store has %d rows; want 1", len(store.byURL))
	}
	if store.byURL[good.URL].Keywords[0] != "budget" {
		t.Errorf("keywords not recomputed: %v", store.byURL[good.URL].Keywords)
	}
}

func TestUpsertArticlesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	arts := []scraper.Article{article("A", "one", testNow), article("A", "two", testNow)}
	res := UpsertArticles(ctx, newMemArticles(), arts, SourceMap{"A": uuid.New()})
	if res.ArticlesSkipped != 2 || res.ArticlesCreated != 0 {
		t.Fatalf("result = %+v", res)
	}
}
