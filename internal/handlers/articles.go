package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Saul-Punybz/unbiased/internal/feeds"
	"github.com/Saul-Punybz/unbiased/internal/models"
)

// ArticleReader is the read side of the article store.
type ArticleReader interface {
	Find(ctx context.Context, f models.ArticleFilter, sort models.Sort, limit, offset int) ([]models.Article, error)
	Count(ctx context.Context, f models.ArticleFilter) (int, error)
	BiasDistribution(ctx context.Context, f models.ArticleFilter) (map[feeds.BiasRating]int, error)
}

// ResponseCache caches rendered listings keyed by name and query.
type ResponseCache interface {
	Get(ctx context.Context, name string, params url.Values, dst any) bool
	Set(ctx context.Context, name string, params url.Values, v any)
}

// ArticlesHandler serves article listings. Cache is optional.
type ArticlesHandler struct {
	Articles ArticleReader
	Cache    ResponseCache
}

// ArticlePage is one page of an article listing.
type ArticlePage struct {
	Articles   []models.Article `json:"articles"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

// BiasDistribution counts articles per bias rating.
type BiasDistribution struct {
	Distribution map[feeds.BiasRating]int `json:"distribution"`
	Total        int                      `json:"total"`
}

// ListArticles handles GET /api/articles.
func (h *ArticlesHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseArticleFilter(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pg := parsePagination(q)
	sort := models.ParseSort(q.Get("sort"))

	ctx := r.Context()
	key := cacheParams(q, "sort", string(sort))
	key.Set("page", strconv.Itoa(pg.Page))
	key.Set("page_size", strconv.Itoa(pg.PageSize))

	var page ArticlePage
	if h.Cache != nil && h.Cache.Get(ctx, "articles", key, &page) {
		writeJSON(w, http.StatusOK, page)
		return
	}

	total, err := h.Articles.Count(ctx, filter)
	if err != nil {
		slog.Error("list articles: count", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch articles")
		return
	}

	articles := []models.Article{}
	if pg.Offset() < total {
		articles, err = h.Articles.Find(ctx, filter, sort, pg.PageSize, pg.Offset())
		if err != nil {
			slog.Error("list articles", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to fetch articles")
			return
		}
		if articles == nil {
			articles = []models.Article{}
		}
	}

	page = ArticlePage{
		Articles:   articles,
		Total:      total,
		Page:       pg.Page,
		PageSize:   pg.PageSize,
		TotalPages: pg.TotalPages(total),
	}
	if h.Cache != nil {
		h.Cache.Set(ctx, "articles", key, page)
	}
	writeJSON(w, http.StatusOK, page)
}

// GetBiasDistribution handles GET /api/articles/bias-distribution. It takes
// the same filters as ListArticles.
func (h *ArticlesHandler) GetBiasDistribution(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseArticleFilter(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	key := cacheParams(q)

	var dist BiasDistribution
	if h.Cache != nil && h.Cache.Get(ctx, "bias-distribution", key, &dist) {
		writeJSON(w, http.StatusOK, dist)
		return
	}

	counts, err := h.Articles.BiasDistribution(ctx, filter)
	if err != nil {
		slog.Error("bias distribution", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to compute bias distribution")
		return
	}

	dist = BiasDistribution{Distribution: make(map[feeds.BiasRating]int, len(feeds.BiasRatings))}
	for _, b := range feeds.BiasRatings {
		dist.Distribution[b] = counts[b]
		dist.Total += counts[b]
	}
	if h.Cache != nil {
		h.Cache.Set(ctx, "bias-distribution", key, dist)
	}
	writeJSON(w, http.StatusOK, dist)
}

// cacheParams keeps only the filter parameters, so unrelated query noise does
// not fragment the cache, then adds extra key/value pairs.
func cacheParams(q url.Values, extra ...string) url.Values {
	out := url.Values{}
	for _, k := range []string{"source", "bias", "q", "keyword", "from", "to"} {
		if v, ok := q[k]; ok {
			out[k] = v
		}
	}
	for i := 0; i+1 < len(extra); i += 2 {
		out.Set(extra[i], extra[i+1])
	}
	return out
}
