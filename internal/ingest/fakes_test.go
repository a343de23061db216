package ingest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Saul-Punybz/unbiased/internal/feeds"
	"github.com/Saul-Punybz/unbiased/internal/models"
	"github.com/Saul-Punybz/unbiased/internal/scraper"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

// memHistory is an in-memory History with the same admission rules as the
// Postgres store.
type memHistory struct {
	mu       sync.Mutex
	runs     []*models.UpdateHistory
	beginErr error
}

func (h *memHistory) add(status models.RunStatus, requestedAt time.Time) {
	h.runs = append(h.runs, &models.UpdateHistory{
		ID:          uuid.New(),
		UpdateType:  models.UpdateScheduled,
		RequestedAt: requestedAt,
		StartedAt:   requestedAt,
		Status:      status,
	})
}

func (h *memHistory) CompletedSince(_ context.Context, since time.Time) ([]time.Time, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []time.Time
	for _, r := range h.runs {
		if r.Status == models.StatusCompleted && r.RequestedAt.After(since) {
			out = append(out, r.RequestedAt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (h *memHistory) Begin(ctx context.Context, p models.BeginParams) (*models.UpdateHistory, error) {
	if h.beginErr != nil {
		return nil, h.beginErr
	}
	completed, _ := h.CompletedSince(ctx, p.Now.Add(-p.Window))

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(completed) >= p.Limit {
		return nil, models.ErrUpdateLimitReached
	}
	for _, r := range h.runs {
		if r.Status == models.StatusInProgress {
			return nil, models.ErrRunInProgress
		}
	}
	rec := &models.UpdateHistory{
		ID:          uuid.New(),
		UpdateType:  p.Type,
		RequestedAt: p.Now,
		StartedAt:   p.Now,
		Status:      models.StatusInProgress,
	}
	h.runs = append(h.runs, rec)
	cp := *rec
	return &cp, nil
}

func (h *memHistory) find(id uuid.UUID) *models.UpdateHistory {
	for _, r := range h.runs {
		if r.ID == id && r.Status == models.StatusInProgress {
			return r
		}
	}
	return nil
}

func (h *memHistory) Complete(_ context.Context, id uuid.UUID, at time.Time, ms int64, counts models.RunCounts, messages []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.find(id)
	if r == nil {
		return models.ErrNotFound
	}
	r.Status = models.StatusCompleted
	r.CompletedAt = &at
	r.DurationMs = &ms
	r.RunCounts = counts
	r.ErrorCount = len(messages)
	r.ErrorMessages = messages
	return nil
}

func (h *memHistory) Fail(_ context.Context, id uuid.UUID, at time.Time, ms int64, message string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.find(id)
	if r == nil {
		return models.ErrNotFound
	}
	r.Status = models.StatusFailed
	r.CompletedAt = &at
	r.DurationMs = &ms
	r.ErrorCount = 1
	r.ErrorMessages = []string{message}
	return nil
}

func (h *memHistory) last() *models.UpdateHistory {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runs[len(h.runs)-1]
}

// memSources mimics UpsertByDomain.
type memSources struct {
	byDomain map[string]*models.Source
	fail     map[string]bool // domains that error
}

func newMemSources() *memSources {
	return &memSources{byDomain: map[string]*models.Source{}, fail: map[string]bool{}}
}

func (s *memSources) UpsertByDomain(_ context.Context, src *models.Source) (bool, error) {
	if s.fail[src.Domain] {
		return false, errors.New("connection reset")
	}
	if existing, ok := s.byDomain[src.Domain]; ok {
		existing.Name = src.Name
		existing.RSSURL = src.RSSURL
		existing.BiasRating = src.BiasRating
		existing.Reliability = src.Reliability
		src.ID = existing.ID
		return false, nil
	}
	src.ID = uuid.New()
	cp := *src
	s.byDomain[src.Domain] = &cp
	return true, nil
}

// memArticles mimics UpsertByURL, keeping the original source on update.
type memArticles struct {
	byURL map[string]*models.Article
	fail  map[string]bool // urls that error
}

func newMemArticles() *memArticles {
	return &memArticles{byURL: map[string]*models.Article{}, fail: map[string]bool{}}
}

func (s *memArticles) UpsertByURL(_ context.Context, a *models.Article) (bool, error) {
	if s.fail[a.URL] {
		return false, errors.New("deadlock detected")
	}
	if existing, ok := s.byURL[a.URL]; ok {
		existing.Title = a.Title
		existing.Description = a.Description
		existing.ImageURL = a.ImageURL
		existing.PublishedAt = a.PublishedAt
		existing.Keywords = a.Keywords
		a.ID = existing.ID
		a.SourceID = existing.SourceID
		return false, nil
	}
	a.ID = uuid.New()
	cp := *a
	s.byURL[a.URL] = &cp
	return true, nil
}

type stubRegistry struct {
	list []feeds.Descriptor
	err  error
}

func (r stubRegistry) Sources(context.Context) ([]feeds.Descriptor, error) {
	return r.list, r.err
}

type stubParser struct {
	mu      sync.Mutex
	calls   int
	results map[string][]scraper.Article
	errs    map[string]error
}

func (p *stubParser) ParseFeed(_ context.Context, src feeds.Descriptor) ([]scraper.Article, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if err := p.errs[src.Name]; err != nil {
		return nil, err
	}
	out := make([]scraper.Article, len(p.results[src.Name]))
	copy(out, p.results[src.Name])
	return out, nil
}

type recordingHooks struct {
	mu          sync.Mutex
	invalidated int
	archived    []string
	published   []string
	archiveErr  error
}

func (h *recordingHooks) Invalidate(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidated++
	return nil
}

func (h *recordingHooks) ArchiveRun(_ context.Context, runID string, _ time.Time, _ any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.archived = append(h.archived, runID)
	return h.archiveErr
}

func (h *recordingHooks) PublishRunCompleted(_ context.Context, runID string, _ any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.published = append(h.published, runID)
	return nil
}

func article(source, slug string, publishedAt time.Time) scraper.Article {
	return scraper.Article{
		Title:       "Senate debates " + slug,
		Description: "Lawmakers argue about " + slug,
		URL:         "https://news.example/" + slug,
		PublishedAt: publishedAt,
		Source:      scraper.ArticleSource{Name: source},
	}
}
