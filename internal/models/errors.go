package models

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")

	// ErrUpdateLimitReached is returned by UpdateHistoryStore.Begin when the
	// rolling window already holds the maximum number of completed runs.
	ErrUpdateLimitReached = errors.New("update limit reached")

	// ErrRunInProgress is returned by UpdateHistoryStore.Begin when another
	// run has not reached a terminal state.
	ErrRunInProgress = errors.New("update already in progress")
)

// nullString maps "" to SQL NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
