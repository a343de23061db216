// Package scraper fetches and parses news feeds, normalises their items into
// articles, and aggregates them across sources.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/Saul-Punybz/unbiased/internal/feeds"
)

const (
	feedUserAgent   = "Unbiased/1.0 (+https://github.com/Saul-Punybz/unbiased)"
	feedTimeout     = 20 * time.Second
	maxFeedBodySize = 10 * 1024 * 1024 // 10 MB
)

// ArticleSource is the source stamp carried by every article.
type ArticleSource struct {
	Name       string           `json:"name"`
	BiasRating feeds.BiasRating `json:"biasRating"`
}

// Article is a normalised feed item. Empty Description or ImageURL means the
// feed supplied none.
type Article struct {
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url"`
	ImageURL    string        `json:"imageUrl,omitempty"`
	PublishedAt time.Time     `json:"publishedAt"`
	Source      ArticleSource `json:"source"`
}

// FeedFetchError reports that one source's feed could not be fetched or
// parsed.
type FeedFetchError struct {
	Source string
	URL    string
	Err    error
}

func (e *FeedFetchError) Error() string {
	return fmt.Sprintf("feed %s (%s): %v", e.Source, e.URL, e.Err)
}

func (e *FeedFetchError) Unwrap() error { return e.Err }

// Fetcher downloads feeds over HTTP and parses them with gofeed.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration

	// Now stamps items that carry no date. Defaults to time.Now.
	Now func() time.Time
}

// NewFetcher creates a Fetcher with the given per-feed timeout. A
// non-positive timeout uses the default of 20 seconds.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = feedTimeout
	}
	return &Fetcher{
		Client:    &http.Client{},
		UserAgent: feedUserAgent,
		Timeout:   timeout,
		Now:       time.Now,
	}
}

// ParseFeed fetches the feed of one source and returns its items as articles
// stamped with the source's name and bias. Items without a title or link are
// dropped. Any failure is returned as a *FeedFetchError.
func (f *Fetcher) ParseFeed(ctx context.Context, src feeds.Descriptor) ([]Article, error) {
	fail := func(err error) error {
		return &FeedFetchError{Source: src.Name, URL: src.FeedURL, Err: err}
	}

	feed, err := f.fetch(ctx, src.FeedURL)
	if err != nil {
		return nil, fail(err)
	}

	fetchedAt := f.now()
	stamp := ArticleSource{Name: src.Name, BiasRating: src.BiasRating}

	articles := make([]Article, 0, len(feed.Items))
	for _, it := range feed.Items {
		raw := rawItemFromFeed(it)
		if raw.Title == "" || raw.Link == "" {
			continue
		}

		published := fetchedAt
		if raw.Published != nil {
			published = *raw.Published
		}

		articles = append(articles, Article{
			Title:       raw.Title,
			Description: ExtractDescription(raw),
			URL:         raw.Link,
			ImageURL:    ExtractImageURL(raw),
			PublishedAt: published,
			Source:      stamp,
		})
	}

	slog.Debug("rss: parsed feed", "source", src.Name, "items", len(feed.Items), "kept", len(articles))
	return articles, nil
}

func (f *Fetcher) fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = feedTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("rss: create request: %w", err)
	}
	ua := f.UserAgent
	if ua == "" {
		ua = feedUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml, text/xml")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rss: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("rss: fetch: status %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxFeedBodySize))
	if err != nil {
		return nil, fmt.Errorf("rss: parse: %w", err)
	}
	return feed, nil
}

func (f *Fetcher) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// rawItemFromFeed maps a gofeed item onto the extractor's field set.
func rawItemFromFeed(it *gofeed.Item) RawItem {
	raw := RawItem{
		Title: strings.TrimSpace(it.Title),
		Link:  strings.TrimSpace(it.Link),
	}

	switch {
	case it.PublishedParsed != nil:
		raw.Published = it.PublishedParsed
	case it.UpdatedParsed != nil:
		raw.Published = it.UpdatedParsed
	}

	if u := extensionAttr(it.Extensions, "media", "content", "url"); u != "" {
		raw.MediaContentURL = Value(u)
	}
	for _, enc := range it.Enclosures {
		if enc != nil && strings.TrimSpace(enc.URL) != "" {
			raw.EnclosureURL = Value(enc.URL)
			break
		}
	}
	if it.Content != "" {
		raw.ContentEncoded = Value(it.Content)
	}
	if it.Description != "" {
		raw.Description = Value(it.Description)
	}

	// media:description is the caption of the attached image, not a summary.
	if it.ITunesExt != nil && it.ITunesExt.Summary != "" {
		raw.Snippet = Value(it.ITunesExt.Summary)
	}

	return raw
}

// extensionAttr returns attr of the first ns:name element that carries it.
func extensionAttr(exts ext.Extensions, ns, name, attr string) string {
	if exts == nil {
		return ""
	}
	for _, e := range exts[ns][name] {
		if v := strings.TrimSpace(e.Attrs[attr]); v != "" {
			return v
		}
	}
	return ""
}
