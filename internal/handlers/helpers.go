// Package handlers implements the Unbiased HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Saul-Punybz/unbiased/internal/feeds"
	"github.com/Saul-Punybz/unbiased/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// maxPage keeps (page-1)*page_size within an int.
	maxPage = math.MaxInt / maxPageSize
)

// writeJSON encodes v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// pagination resolves page and page_size query values. Page numbers start at
// 1; page_size defaults to 20 and is capped at 100.
type pagination struct {
	Page     int
	PageSize int
}

func parsePagination(q url.Values) pagination {
	page, _ := strconv.Atoi(q.Get("page"))
	switch {
	case page < 1:
		page = 1
	case page > maxPage:
		page = maxPage
	}
	size, _ := strconv.Atoi(q.Get("page_size"))
	switch {
	case size <= 0:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	return pagination{Page: page, PageSize: size}
}

func (p pagination) Offset() int { return (p.Page - 1) * p.PageSize }

// TotalPages is the number of pages needed for total items.
func (p pagination) TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + p.PageSize - 1) / p.PageSize
}

var errBadFilter = errors.New("invalid filter")

// parseArticleFilter reads source, bias, q, keyword, from and to. Dates are
// RFC 3339 or YYYY-MM-DD; a bare "to" date includes that whole day.
func parseArticleFilter(q url.Values) (models.ArticleFilter, error) {
	f := models.ArticleFilter{
		Source:  strings.TrimSpace(q.Get("source")),
		Query:   strings.TrimSpace(q.Get("q")),
		Keyword: strings.ToLower(strings.TrimSpace(q.Get("keyword"))),
	}

	for _, raw := range q["bias"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			b, err := feeds.ParseBiasRating(part)
			if err != nil {
				return f, fmt.Errorf("%w: bias %q", errBadFilter, part)
			}
			f.Biases = append(f.Biases, b)
		}
	}

	if v := q.Get("from"); v != "" {
		t, _, err := parseDate(v)
		if err != nil {
			return f, fmt.Errorf("%w: from %q", errBadFilter, v)
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, dateOnly, err := parseDate(v)
		if err != nil {
			return f, fmt.Errorf("%w: to %q", errBadFilter, v)
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = &t
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, fmt.Errorf("%w: to is before from", errBadFilter)
	}
	return f, nil
}

func parseDate(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	return t, true, err
}
