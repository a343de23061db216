package scraper

import "time"

// FilterWithinRange keeps the articles published at or after start and, when
// end is non-nil, at or before end. Order is preserved.
func FilterWithinRange(articles []Article, start time.Time, end *time.Time) []Article {
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		if a.PublishedAt.Before(start) {
			continue
		}
		if end != nil && a.PublishedAt.After(*end) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// StartOfPreviousDay returns midnight of the calendar day before now, in loc.
// A nil loc means UTC.
func StartOfPreviousDay(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := now.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day()-1, 0, 0, 0, 0, loc)
}
