package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Saul-Punybz/unbiased/internal/feeds"
)

// Source is a persisted news outlet, keyed by the domain of its feed.
type Source struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Domain      string            `json:"domain"`
	RSSURL      string            `json:"rssUrl"`
	BiasRating  feeds.BiasRating  `json:"biasRating"`
	Reliability feeds.Reliability `json:"reliability"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// SourceStore provides data access methods for sources.
type SourceStore struct {
	pool *pgxpool.Pool
}

// NewSourceStore creates a new SourceStore.
func NewSourceStore(pool *pgxpool.Pool) *SourceStore {
	return &SourceStore{pool: pool}
}

const sourceColumns = `id, name, domain, rss_url, bias_rating, reliability, created_at, updated_at`

func scanSource(row scannable) (Source, error) {
	var src Source
	err := row.Scan(&src.ID, &src.Name, &src.Domain, &src.RSSURL,
		&src.BiasRating, &src.Reliability, &src.CreatedAt, &src.UpdatedAt)
	return src, err
}

// UpsertByDomain inserts the source or, when its domain already exists,
// overwrites name, feed URL, bias and reliability. It fills in ID and
// timestamps and reports whether a new row was created.
func (s *SourceStore) UpsertByDomain(ctx context.Context, src *Source) (bool, error) {
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}

	var created bool
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sources (id, name, domain, rss_url, bias_rating, reliability)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (domain) DO UPDATE
		SET name = EXCLUDED.name,
		    rss_url = EXCLUDED.rss_url,
		    bias_rating = EXCLUDED.bias_rating,
		    reliability = EXCLUDED.reliability,
		    updated_at = now()
		RETURNING id, created_at, updated_at, (xmax = 0)
	`,
		src.ID, src.Name, src.Domain, src.RSSURL, src.BiasRating, src.Reliability,
	).Scan(&src.ID, &src.CreatedAt, &src.UpdatedAt, &created)
	if err != nil {
		return false, fmt.Errorf("source upsert %s: %w", src.Domain, err)
	}
	return created, nil
}

// ListAll returns every source ordered by name.
func (s *SourceStore) ListAll(ctx context.Context) ([]Source, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("source list: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("source scan: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// GetByDomain returns the source stored under domain.
func (s *SourceStore) GetByDomain(ctx context.Context, domain string) (*Source, error) {
	src, err := scanSource(s.pool.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE domain = $1`, domain))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("source %s: %w", domain, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("source get: %w", err)
	}
	return &src, nil
}
