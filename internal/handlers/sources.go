package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Saul-Punybz/unbiased/internal/models"
)

// SourceLister lists persisted sources ordered by name.
type SourceLister interface {
	ListAll(ctx context.Context) ([]models.Source, error)
}

// SourcesHandler groups source HTTP handlers.
type SourcesHandler struct {
	Sources SourceLister
}

// ListSources handles GET /api/sources.
func (h *SourcesHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.Sources.ListAll(r.Context())
	if err != nil {
		slog.Error("list sources", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch sources")
		return
	}

	if sources == nil {
		sources = []models.Source{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sources": sources,
		"count":   len(sources),
	})
}
