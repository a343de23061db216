package ingest

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Saul-Punybz/unbiased/internal/feeds"
	"github.com/Saul-Punybz/unbiased/internal/models"
	"github.com/Saul-Punybz/unbiased/internal/scraper"
)

// SourceUpserter persists sources keyed by domain.
type SourceUpserter interface {
	UpsertByDomain(ctx context.Context, src *models.Source) (created bool, err error)
}

// ArticleUpserter persists articles keyed by URL.
type ArticleUpserter interface {
	UpsertByURL(ctx context.Context, a *models.Article) (created bool, err error)
}

// SourceMap resolves a source name to its persisted id.
type SourceMap map[string]uuid.UUID

// SourceUpsertResult tallies one UpsertSources call.
type SourceUpsertResult struct {
	SourceMap      SourceMap
	SourcesCreated int
	SourcesUpdated int
	SourcesFailed  int
}

// ArticleUpsertResult tallies one UpsertArticles call.
type ArticleUpsertResult struct {
	ArticlesCreated int
	ArticlesUpdated int
	ArticlesSkipped int
}

// UpsertSources persists every descriptor by domain and returns the name to
// id map. A descriptor whose domain cannot be derived, or whose upsert fails,
// is logged and left out of the map.
func UpsertSources(ctx context.Context, store SourceUpserter, descriptors []feeds.Descriptor) SourceUpsertResult {
	res := SourceUpsertResult{SourceMap: make(SourceMap, len(descriptors))}

	for _, d := range descriptors {
		if ctx.Err() != nil {
			res.SourcesFailed += len(descriptors) - res.SourcesCreated - res.SourcesUpdated - res.SourcesFailed
			break
		}

		domain, err := d.Domain()
		if err != nil {
			slog.Warn("upsert: skipping source", "source", d.Name, "err", err)
			res.SourcesFailed++
			continue
		}

		src := &models.Source{
			Name:        d.Name,
			Domain:      domain,
			RSSURL:      d.FeedURL,
			BiasRating:  d.BiasRating,
			Reliability: feeds.ReliabilityFor(d.BiasRating),
		}
		created, err := store.UpsertByDomain(ctx, src)
		if err != nil {
			slog.Error("upsert: source failed", "source", d.Name, "err", err)
			res.SourcesFailed++
			continue
		}

		res.SourceMap[d.Name] = src.ID
		if created {
			res.SourcesCreated++
		} else {
			res.SourcesUpdated++
		}
	}

	return res
}

// UpsertArticles persists articles by URL, one at a time. Articles whose
// source is missing from sm, or whose upsert fails, are counted as skipped.
// Keywords are recomputed on every upsert.
func UpsertArticles(ctx context.Context, store ArticleUpserter, articles []scraper.Article, sm SourceMap) ArticleUpsertResult {
	var res ArticleUpsertResult

	for i, a := range articles {
		if ctx.Err() != nil {
			res.ArticlesSkipped += len(articles) - i
			break
		}

		sourceID, ok := sm[a.Source.Name]
		if !ok {
			slog.Debug("upsert: article source unresolved", "source", a.Source.Name, "url", a.URL)
			res.ArticlesSkipped++
			continue
		}

		row := &models.Article{
			SourceID:    sourceID,
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			ImageURL:    a.ImageURL,
			PublishedAt: a.PublishedAt,
			Keywords:    scraper.ExtractKeywords(a.Title, a.Description),
		}
		created, err := store.UpsertByURL(ctx, row)
		if err != nil {
			slog.Error("upsert: article failed", "url", a.URL, "err", err)
			res.ArticlesSkipped++
			continue
		}

		if created {
			res.ArticlesCreated++
		} else {
			res.ArticlesUpdated++
		}
	}

	return res
}
