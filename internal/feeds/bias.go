// Package feeds holds the curated catalog of news sources and the bias and
// reliability labels attached to them.
package feeds

import (
	"fmt"
	"strings"
)

// BiasRating is the curated political-bias label of a source.
type BiasRating string

const (
	BiasLeft      BiasRating = "left"
	BiasLeanLeft  BiasRating = "lean-left"
	BiasCenter    BiasRating = "center"
	BiasLeanRight BiasRating = "lean-right"
	BiasRight     BiasRating = "right"
)

// BiasRatings lists every rating from left to right.
var BiasRatings = []BiasRating{BiasLeft, BiasLeanLeft, BiasCenter, BiasLeanRight, BiasRight}

// Valid reports whether b is one of the five known ratings.
func (b BiasRating) Valid() bool {
	for _, r := range BiasRatings {
		if b == r {
			return true
		}
	}
	return false
}

// Label returns the display label, e.g. "Lean Left".
func (b BiasRating) Label() string {
	switch b {
	case BiasLeft:
		return "Left"
	case BiasLeanLeft:
		return "Lean Left"
	case BiasCenter:
		return "Center"
	case BiasLeanRight:
		return "Lean Right"
	case BiasRight:
		return "Right"
	}
	return string(b)
}

// ParseBiasRating parses a rating case-insensitively.
func ParseBiasRating(s string) (BiasRating, error) {
	b := BiasRating(strings.ToLower(strings.TrimSpace(s)))
	if !b.Valid() {
		return "", fmt.Errorf("feeds: unknown bias rating %q", s)
	}
	return b, nil
}

// Reliability is derived from the bias rating through a fixed table.
type Reliability string

const (
	ReliabilityMixed    Reliability = "mixed"
	ReliabilityHigh     Reliability = "high"
	ReliabilityVeryHigh Reliability = "very-high"
)

var reliabilityByBias = map[BiasRating]Reliability{
	BiasLeft:      ReliabilityMixed,
	BiasLeanLeft:  ReliabilityHigh,
	BiasCenter:    ReliabilityVeryHigh,
	BiasLeanRight: ReliabilityHigh,
	BiasRight:     ReliabilityMixed,
}

// ReliabilityFor returns the reliability for a bias rating. Unknown ratings
// map to mixed.
func ReliabilityFor(b BiasRating) Reliability {
	if r, ok := reliabilityByBias[b]; ok {
		return r
	}
	return ReliabilityMixed
}
