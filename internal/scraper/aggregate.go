package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Saul-Punybz/unbiased/internal/feeds"
)

// FeedParser fetches and normalises the feed of a single source.
type FeedParser interface {
	ParseFeed(ctx context.Context, src feeds.Descriptor) ([]Article, error)
}

// FeedError records the failure of one source during aggregation.
type FeedError struct {
	SourceName string `json:"sourceName"`
	Error      string `json:"error"`
}

// String renders the error as "<source>: <message>".
func (e FeedError) String() string {
	return e.SourceName + ": " + e.Error
}

// Aggregate is the combined outcome of parsing many feeds.
type Aggregate struct {
	Articles []Article
	Errors   []FeedError
}

// ParseMultipleFeeds parses every source concurrently, at most limit at a
// time (limit <= 0 means all at once). A failing source never cancels the
// others; its failure is reported in Errors in registry order. Articles are
// sorted newest first and ties keep registry then feed order.
func ParseMultipleFeeds(ctx context.Context, p FeedParser, sources []feeds.Descriptor, limit int) Aggregate {
	if len(sources) == 0 {
		return Aggregate{}
	}
	if limit <= 0 || limit > len(sources) {
		limit = len(sources)
	}

	results := make([][]Article, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			results[i], errs[i] = parseOne(ctx, p, src)
			return nil
		})
	}
	_ = g.Wait()

	var agg Aggregate
	for i, src := range sources {
		if errs[i] != nil {
			slog.Warn("aggregate: feed failed", "source", src.Name, "err", errs[i])
			agg.Errors = append(agg.Errors, FeedError{SourceName: src.Name, Error: feedErrorMessage(errs[i])})
			continue
		}
		agg.Articles = append(agg.Articles, results[i]...)
	}

	sort.SliceStable(agg.Articles, func(i, j int) bool {
		return agg.Articles[i].PublishedAt.After(agg.Articles[j].PublishedAt)
	})

	slog.Info("aggregate: feeds parsed",
		"sources", len(sources),
		"failed", len(agg.Errors),
		"articles", len(agg.Articles),
	)
	return agg
}

// parseOne isolates a single parser call, turning a panic into an error.
func parseOne(ctx context.Context, p FeedParser, src feeds.Descriptor) (articles []Article, err error) {
	defer func() {
		if r := recover(); r != nil {
			articles, err = nil, fmt.Errorf("parser panic: %v", r)
		}
	}()
	return p.ParseFeed(ctx, src)
}

// feedErrorMessage drops the source prefix that FeedFetchError adds, since
// FeedError already carries the source name.
func feedErrorMessage(err error) string {
	var fe *FeedFetchError
	if errors.As(err, &fe) && fe.Err != nil {
		return fe.Err.Error()
	}
	return err.Error()
}
