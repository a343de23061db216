package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UpdateType says what triggered a pipeline run.
type UpdateType string

const (
	UpdateManual    UpdateType = "manual"
	UpdateScheduled UpdateType = "scheduled"
)

// RunStatus is the state of an update history record. in_progress moves to
// exactly one of completed or failed.
type RunStatus string

const (
	StatusInProgress RunStatus = "in_progress"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// abandonedMessage is recorded on runs that stayed in progress too long.
const abandonedMessage = "abandoned: run did not finish"

// runLockKey is the advisory lock serialising run admission.
const runLockKey int64 = 0x756e6269617365 // "unbiase"

// RunCounts are the upsert tallies of one run.
type RunCounts struct {
	SourcesCreated  int `json:"sourcesCreated"`
	SourcesUpdated  int `json:"sourcesUpdated"`
	ArticlesCreated int `json:"articlesCreated"`
	ArticlesUpdated int `json:"articlesUpdated"`
	ArticlesSkipped int `json:"articlesSkipped"`
}

// UpdateHistory is the audit record of one pipeline run.
type UpdateHistory struct {
	ID          uuid.UUID  `json:"id"`
	UpdateType  UpdateType `json:"updateType"`
	RequestedAt time.Time  `json:"requestedAt"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Status      RunStatus  `json:"status"`
	DurationMs  *int64     `json:"durationMs,omitempty"`
	RunCounts
	ErrorCount    int      `json:"errorCount"`
	ErrorMessages []string `json:"errorMessages"`
}

// BeginParams describes a run admission request.
type BeginParams struct {
	Type       UpdateType
	Now        time.Time
	Limit      int
	Window     time.Duration
	StaleAfter time.Duration // 0 never abandons stale runs
}

// UpdateHistoryStore provides data access methods for update history.
type UpdateHistoryStore struct {
	pool *pgxpool.Pool
}

// NewUpdateHistoryStore creates a new UpdateHistoryStore.
func NewUpdateHistoryStore(pool *pgxpool.Pool) *UpdateHistoryStore {
	return &UpdateHistoryStore{pool: pool}
}

const historyColumns = `id, update_type, requested_at, started_at, completed_at, status,
	duration_ms, sources_created, sources_updated, articles_created,
	articles_updated, articles_skipped, error_count, error_messages`

func scanHistory(row scannable) (UpdateHistory, error) {
	var h UpdateHistory
	err := row.Scan(
		&h.ID, &h.UpdateType, &h.RequestedAt, &h.StartedAt, &h.CompletedAt, &h.Status,
		&h.DurationMs, &h.SourcesCreated, &h.SourcesUpdated, &h.ArticlesCreated,
		&h.ArticlesUpdated, &h.ArticlesSkipped, &h.ErrorCount, &h.ErrorMessages,
	)
	return h, err
}

// CompletedSince returns the requested_at times of completed runs requested
// after since, oldest first. A run requested exactly at since has left the
// window.
func (s *UpdateHistoryStore) CompletedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT requested_at FROM update_history
		WHERE status = 'completed' AND requested_at > $1
		ORDER BY requested_at ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("update history completed since: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[time.Time])
}

// Begin admits a new run. Under an advisory transaction lock it marks runs
// stuck in progress longer than StaleAfter as failed, re-checks the rolling
// limit, refuses when another run is in progress, and inserts the new
// in_progress record.
func (s *UpdateHistoryStore) Begin(ctx context.Context, p BeginParams) (*UpdateHistory, error) {
	h := UpdateHistory{
		ID:            uuid.New(),
		UpdateType:    p.Type,
		RequestedAt:   p.Now,
		StartedAt:     p.Now,
		Status:        StatusInProgress,
		ErrorMessages: []string{},
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, runLockKey); err != nil {
			return fmt.Errorf("lock: %w", err)
		}

		if p.StaleAfter > 0 {
			tag, err := tx.Exec(ctx, `
				UPDATE update_history
				SET status = 'failed',
				    completed_at = $1,
				    duration_ms = (EXTRACT(EPOCH FROM ($1::timestamptz - started_at)) * 1000)::bigint,
				    error_count = 1,
				    error_messages = ARRAY[$2::text]
				WHERE status = 'in_progress' AND started_at < $3
			`, p.Now, abandonedMessage, p.Now.Add(-p.StaleAfter))
			if err != nil {
				return fmt.Errorf("abandon stale runs: %w", err)
			}
			if n := tag.RowsAffected(); n > 0 {
				slog.Warn("update history: abandoned stale runs", "count", n)
			}
		}

		var completed int
		if err := tx.QueryRow(ctx, `
			SELECT count(*) FROM update_history
			WHERE status = 'completed' AND requested_at > $1
		`, p.Now.Add(-p.Window)).Scan(&completed); err != nil {
			return fmt.Errorf("count completed: %w", err)
		}
		if completed >= p.Limit {
			return ErrUpdateLimitReached
		}

		var running bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM update_history WHERE status = 'in_progress')`,
		).Scan(&running); err != nil {
			return fmt.Errorf("check in progress: %w", err)
		}
		if running {
			return ErrRunInProgress
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO update_history (id, update_type, requested_at, started_at, status, error_messages)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, h.ID, h.UpdateType, h.RequestedAt, h.StartedAt, h.Status, h.ErrorMessages)
		if isUniqueViolation(err) {
			return ErrRunInProgress
		}
		if err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update history begin: %w", err)
	}
	return &h, nil
}

// Complete moves an in_progress run to completed with its tallies and the
// non-fatal error messages collected along the way.
func (s *UpdateHistoryStore) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time, durationMs int64, counts RunCounts, messages []string) error {
	if messages == nil {
		messages = []string{}
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE update_history
		SET status = 'completed', completed_at = $2, duration_ms = $3,
		    sources_created = $4, sources_updated = $5,
		    articles_created = $6, articles_updated = $7, articles_skipped = $8,
		    error_count = $9, error_messages = $10
		WHERE id = $1 AND status = 'in_progress'
	`, id, completedAt, durationMs,
		counts.SourcesCreated, counts.SourcesUpdated,
		counts.ArticlesCreated, counts.ArticlesUpdated, counts.ArticlesSkipped,
		len(messages), messages,
	)
	if err != nil {
		return fmt.Errorf("update history complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update history complete %s: %w", id, ErrNotFound)
	}
	return nil
}

// Fail moves an in_progress run to failed with a single message.
func (s *UpdateHistoryStore) Fail(ctx context.Context, id uuid.UUID, completedAt time.Time, durationMs int64, message string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE update_history
		SET status = 'failed', completed_at = $2, duration_ms = $3,
		    error_count = 1, error_messages = ARRAY[$4::text]
		WHERE id = $1 AND status = 'in_progress'
	`, id, completedAt, durationMs, message)
	if err != nil {
		return fmt.Errorf("update history fail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update history fail %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListRecent returns the latest runs, newest first.
func (s *UpdateHistoryStore) ListRecent(ctx context.Context, limit int) ([]UpdateHistory, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `SELECT `+historyColumns+`
		FROM update_history ORDER BY requested_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("update history list: %w", err)
	}
	defer rows.Close()

	var out []UpdateHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("update history scan: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Get returns one run by id.
func (s *UpdateHistoryStore) Get(ctx context.Context, id uuid.UUID) (*UpdateHistory, error) {
	h, err := scanHistory(s.pool.QueryRow(ctx,
		`SELECT `+historyColumns+` FROM update_history WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update history %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update history get: %w", err)
	}
	return &h, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
