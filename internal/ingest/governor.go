// Package ingest runs the RSS ingestion pipeline: rate-limit admission,
// aggregation, recency filtering and persistence, bracketed by an update
// history record.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	DefaultUpdateLimit  = 3
	DefaultUpdateWindow = 24 * time.Hour
)

// CompletedRuns reports when completed runs were requested.
type CompletedRuns interface {
	CompletedSince(ctx context.Context, since time.Time) ([]time.Time, error)
}

// LimitStatus is the outcome of a rate-limit check.
type LimitStatus struct {
	Allowed         bool       `json:"allowed"`
	UpdatesInPeriod int        `json:"updatesInPeriod"`
	UpdateLimit     int        `json:"updateLimit"`
	AllowUpdateNext *time.Time `json:"allowUpdateNext,omitempty"`
}

// RetryAfter returns how long a rejected caller should wait, rounded up to
// whole seconds. It is zero when the update is allowed.
func (s LimitStatus) RetryAfter(now time.Time) time.Duration {
	if s.Allowed || s.AllowUpdateNext == nil {
		return 0
	}
	d := s.AllowUpdateNext.Sub(now)
	if d <= 0 {
		return time.Second
	}
	return (d + time.Second - 1).Truncate(time.Second)
}

// Evaluate applies the rolling limit to the request times of the completed
// runs inside the window. When the limit is reached, AllowUpdateNext is the
// moment enough of those runs age out of the window for one more to fit.
func Evaluate(completed []time.Time, limit int, window time.Duration) LimitStatus {
	st := LimitStatus{
		UpdatesInPeriod: len(completed),
		UpdateLimit:     limit,
		Allowed:         len(completed) < limit,
	}
	if st.Allowed || len(completed) == 0 {
		return st
	}

	sorted := make([]time.Time, len(completed))
	copy(sorted, completed)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	idx := len(sorted) - limit
	if idx < 0 {
		idx = 0
	}
	next := sorted[idx].Add(window)
	st.AllowUpdateNext = &next
	return st
}

// Governor decides whether a pipeline run may start.
type Governor struct {
	History CompletedRuns
	Limit   int
	Window  time.Duration
	Now     func() time.Time
}

// NewGovernor creates a Governor; non-positive limit or window take the
// defaults of 3 runs per 24 hours.
func NewGovernor(history CompletedRuns, limit int, window time.Duration) *Governor {
	if limit <= 0 {
		limit = DefaultUpdateLimit
	}
	if window <= 0 {
		window = DefaultUpdateWindow
	}
	return &Governor{History: history, Limit: limit, Window: window, Now: time.Now}
}

// Check counts completed runs requested within (now-Window, now].
func (g *Governor) Check(ctx context.Context) (LimitStatus, error) {
	completed, err := g.History.CompletedSince(ctx, g.now().Add(-g.Window))
	if err != nil {
		return LimitStatus{}, fmt.Errorf("ingest: check limit: %w", err)
	}
	return Evaluate(completed, g.Limit, g.Window), nil
}

func (g *Governor) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}
