package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Saul-Punybz/unbiased/internal/ingest"
	"github.com/Saul-Punybz/unbiased/internal/models"
)

// Updater starts pipeline runs.
type Updater interface {
	Run(ctx context.Context, typ models.UpdateType) (*ingest.RunResult, error)
}

// LimitChecker reports the current rate-limit state.
type LimitChecker interface {
	Check(ctx context.Context) (ingest.LimitStatus, error)
}

// HistoryLister lists recent runs, newest first.
type HistoryLister interface {
	ListRecent(ctx context.Context, limit int) ([]models.UpdateHistory, error)
}

// UpdatesHandler triggers and reports on pipeline runs.
type UpdatesHandler struct {
	Pipeline Updater
	Governor LimitChecker
	History  HistoryLister

	// RunTimeout bounds a manual run; zero leaves it unbounded.
	RunTimeout time.Duration
	Now        func() time.Time
}

// updateResponse adds a human-readable error to a run result.
type updateResponse struct {
	*ingest.RunResult
	Error string `json:"error,omitempty"`
}

// TriggerUpdate handles POST /api/update. The run is detached from the
// request context so a client disconnect does not abort it half way.
func (h *UpdatesHandler) TriggerUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	if h.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.RunTimeout)
		defer cancel()
	}

	res, err := h.Pipeline.Run(ctx, models.UpdateManual)
	if err != nil {
		slog.Error("update: run failed", "err", err)
		body := map[string]any{"success": false, "error": err.Error()}
		var runErr *ingest.RunError
		if errors.As(err, &runErr) {
			body["historyId"] = runErr.HistoryID.String()
		}
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}

	switch res.Status {
	case ingest.RunRejected:
		if res.Limit != nil {
			secs := int(res.Limit.RetryAfter(h.now()).Seconds())
			if secs > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(secs))
			}
		}
		writeJSON(w, http.StatusTooManyRequests, updateResponse{
			RunResult: res,
			Error:     "update limit reached",
		})
	case ingest.RunBusy:
		writeJSON(w, http.StatusConflict, updateResponse{
			RunResult: res,
			Error:     "an update is already in progress",
		})
	default:
		writeJSON(w, http.StatusOK, updateResponse{RunResult: res})
	}
}

// GetLimit handles GET /api/update/limit.
func (h *UpdatesHandler) GetLimit(w http.ResponseWriter, r *http.Request) {
	st, err := h.Governor.Check(r.Context())
	if err != nil {
		slog.Error("update: check limit", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to check update limit")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ListHistory handles GET /api/update/history?limit=.
func (h *UpdatesHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	switch {
	case limit <= 0:
		limit = defaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}

	runs, err := h.History.ListRecent(r.Context(), limit)
	if err != nil {
		slog.Error("update: list history", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch update history")
		return
	}
	if runs == nil {
		runs = []models.UpdateHistory{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"history": runs,
		"count":   len(runs),
	})
}

func (h *UpdatesHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
