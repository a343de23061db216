package scraper

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

// imageLookupTimeout bounds one article page visit.
const imageLookupTimeout = 10 * time.Second

// Scraper visits article pages with a rate-limited Colly collector.
type Scraper struct {
	userAgent string
}

// NewScraper creates a Scraper that limits itself to 2 parallel requests with
// a one second delay per domain.
func NewScraper() *Scraper {
	return &Scraper{
		userAgent: feedUserAgent,
	}
}

// newCollector creates a fresh Colly collector. Each visit gets its own
// collector to avoid state leakage.
func (s *Scraper) newCollector() *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.AllowURLRevisit(),
		colly.MaxDepth(1),
	)

	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 2,
		Delay:       1 * time.Second,
		RandomDelay: 500 * time.Millisecond,
	})

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	return c
}

// PageImage fetches an article page and returns its og:image, falling back to
// twitter:image. It returns "" on any failure or after 10 seconds.
func (s *Scraper) PageImage(ctx context.Context, pageURL string) string {
	ctx, cancel := context.WithTimeout(ctx, imageLookupTimeout)
	defer cancel()

	c := s.newCollector()

	var (
		ogImage      string
		twitterImage string
		mu           sync.Mutex
	)

	c.OnHTML(`meta[property="og:image"]`, func(e *colly.HTMLElement) {
		mu.Lock()
		if ogImage == "" {
			ogImage = strings.TrimSpace(e.Attr("content"))
		}
		mu.Unlock()
	})

	c.OnHTML(`meta[name="twitter:image"]`, func(e *colly.HTMLElement) {
		mu.Lock()
		if twitterImage == "" {
			twitterImage = strings.TrimSpace(e.Attr("content"))
		}
		mu.Unlock()
	})

	c.OnError(func(r *colly.Response, err error) {
		slog.Debug("scraper: image lookup failed", "url", truncate(pageURL, 80), "err", err)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Visit(pageURL)
		c.Wait()
	}()

	select {
	case <-ctx.Done():
		return ""
	case <-done:
	}

	mu.Lock()
	defer mu.Unlock()
	if ogImage != "" {
		return ogImage
	}
	return twitterImage
}

// FillImages looks up page images for up to limit articles that have none.
// Articles are updated in place; the number filled is returned.
func (s *Scraper) FillImages(ctx context.Context, articles []Article, limit int) int {
	filled := 0
	tried := 0
	for i := range articles {
		if tried >= limit || ctx.Err() != nil {
			break
		}
		if articles[i].ImageURL != "" {
			continue
		}
		tried++
		if img := s.PageImage(ctx, articles[i].URL); img != "" {
			articles[i].ImageURL = img
			filled++
		}
	}
	slog.Info("scraper: image lookup done", "tried", tried, "filled", filled)
	return filled
}
