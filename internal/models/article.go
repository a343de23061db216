package models

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Saul-Punybz/unbiased/internal/feeds"
)

// Article is a persisted news article. Reads join the owning source's name,
// domain and bias.
type Article struct {
	ID          uuid.UUID `json:"id"`
	SourceID    uuid.UUID `json:"sourceId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	Keywords    []string  `json:"keywords"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	SourceName   string           `json:"sourceName,omitempty"`
	SourceDomain string           `json:"sourceDomain,omitempty"`
	BiasRating   feeds.BiasRating `json:"biasRating,omitempty"`
}

// ArticleFilter narrows article listings. Zero fields do not filter.
type ArticleFilter struct {
	Source  string             // source name, case-insensitive
	Biases  []feeds.BiasRating // any of
	Query   string             // substring of title or description
	Keyword string             // exact keyword
	From    *time.Time
	To      *time.Time
}

// Sort orders article listings by publication date.
type Sort string

const (
	SortNewest Sort = "newest"
	SortOldest Sort = "oldest"
)

// ParseSort maps a query value to a Sort, defaulting to newest.
func ParseSort(s string) Sort {
	if strings.EqualFold(s, string(SortOldest)) {
		return SortOldest
	}
	return SortNewest
}

// scannable is an interface for pgx Row and Rows.
type scannable interface {
	Scan(dest ...any) error
}

// ArticleStore provides data access methods for articles.
type ArticleStore struct {
	pool *pgxpool.Pool
}

// NewArticleStore creates a new ArticleStore.
func NewArticleStore(pool *pgxpool.Pool) *ArticleStore {
	return &ArticleStore{pool: pool}
}

const articleSelect = `
	SELECT a.id, a.source_id, a.title, a.description, a.url, a.image_url,
	       a.published_at, a.keywords, a.created_at, a.updated_at,
	       s.name, s.domain, s.bias_rating
	FROM articles a
	JOIN sources s ON s.id = a.source_id`

// scanArticle scans a single joined article row, handling nullable columns.
func scanArticle(row scannable) (Article, error) {
	var a Article
	var description, imageURL *string
	err := row.Scan(
		&a.ID, &a.SourceID, &a.Title, &description, &a.URL, &imageURL,
		&a.PublishedAt, &a.Keywords, &a.CreatedAt, &a.UpdatedAt,
		&a.SourceName, &a.SourceDomain, &a.BiasRating,
	)
	a.Description = derefString(description)
	a.ImageURL = derefString(imageURL)
	return a, err
}

// UpsertByURL inserts the article or, when its URL already exists, overwrites
// title, description, image, publication date and keywords. The owning
// source of an existing article is never changed. It reports whether a new
// row was created.
func (s *ArticleStore) UpsertByURL(ctx context.Context, a *Article) (bool, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Keywords == nil {
		a.Keywords = []string{}
	}

	var created bool
	err := s.pool.QueryRow(ctx, `
		INSERT INTO articles (id, source_id, title, description, url, image_url, published_at, keywords)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (url) DO UPDATE
		SET title = EXCLUDED.title,
		    description = EXCLUDED.description,
		    image_url = EXCLUDED.image_url,
		    published_at = EXCLUDED.published_at,
		    keywords = EXCLUDED.keywords,
		    updated_at = now()
		RETURNING id, source_id, created_at, updated_at, (xmax = 0)
	`,
		a.ID, a.SourceID, a.Title, nullString(a.Description), a.URL,
		nullString(a.ImageURL), a.PublishedAt, a.Keywords,
	).Scan(&a.ID, &a.SourceID, &a.CreatedAt, &a.UpdatedAt, &created)
	if err != nil {
		return false, fmt.Errorf("article upsert: %w", err)
	}
	return created, nil
}

// GetByURL returns the article stored under url.
func (s *ArticleStore) GetByURL(ctx context.Context, url string) (*Article, error) {
	a, err := scanArticle(s.pool.QueryRow(ctx, articleSelect+` WHERE a.url = $1`, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("article %s: %w", url, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("article get: %w", err)
	}
	return &a, nil
}

// Find returns one page of articles matching f.
func (s *ArticleStore) Find(ctx context.Context, f ArticleFilter, sort Sort, limit, offset int) ([]Article, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	where, args := buildArticleWhere(f)
	order := "a.published_at DESC, a.id"
	if sort == SortOldest {
		order = "a.published_at ASC, a.id"
	}

	n := len(args)
	query := articleSelect + where +
		" ORDER BY " + order +
		" LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("article find: %w", err)
	}
	defer rows.Close()

	articles := make([]Article, 0, limit)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("article scan: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// Count returns the number of articles matching f.
func (s *ArticleStore) Count(ctx context.Context, f ArticleFilter) (int, error) {
	where, args := buildArticleWhere(f)
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM articles a JOIN sources s ON s.id = a.source_id`+where, args...,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("article count: %w", err)
	}
	return n, nil
}

// BiasDistribution counts matching articles per bias rating. Every rating is
// present in the result, with zero when no article matches.
func (s *ArticleStore) BiasDistribution(ctx context.Context, f ArticleFilter) (map[feeds.BiasRating]int, error) {
	where, args := buildArticleWhere(f)
	rows, err := s.pool.Query(ctx, `
		SELECT s.bias_rating, count(*)
		FROM articles a JOIN sources s ON s.id = a.source_id`+where+`
		GROUP BY s.bias_rating`, args...)
	if err != nil {
		return nil, fmt.Errorf("article bias distribution: %w", err)
	}
	defer rows.Close()

	dist := make(map[feeds.BiasRating]int, len(feeds.BiasRatings))
	for _, b := range feeds.BiasRatings {
		dist[b] = 0
	}
	for rows.Next() {
		var b feeds.BiasRating
		var n int
		if err := rows.Scan(&b, &n); err != nil {
			return nil, fmt.Errorf("article bias scan: %w", err)
		}
		dist[b] = n
	}
	return dist, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildArticleWhere turns a filter into a WHERE clause over the articles (a)
// and sources (s) join, numbering placeholders from $1.
func buildArticleWhere(f ArticleFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "$?", "$"+strconv.Itoa(len(args))))
	}

	if src := strings.TrimSpace(f.Source); src != "" {
		add("lower(s.name) = lower($?)", src)
	}
	if len(f.Biases) > 0 {
		biases := make([]string, len(f.Biases))
		for i, b := range f.Biases {
			biases[i] = string(b)
		}
		add("s.bias_rating = ANY($?)", biases)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		add("(a.title ILIKE $? OR a.description ILIKE $?)", "%"+likeEscaper.Replace(q)+"%")
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		add("$? = ANY(a.keywords)", strings.ToLower(kw))
	}
	if f.From != nil {
		add("a.published_at >= $?", *f.From)
	}
	if f.To != nil {
		add("a.published_at <= $?", *f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
