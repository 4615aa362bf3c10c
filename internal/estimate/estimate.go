// Package estimate holds the request and result envelope shared by every
// estimation tier, plus the confidence and date helpers they agree on.
package estimate

import (
	"strings"
	"time"

	"github.com/orchidlab/labpredict/internal/errors"
)

// Milestone is the biological event being estimated
type Milestone string

const (
	// Germination estimates seed germination from the sowing date
	Germination Milestone = "germination"
	// Maturation estimates capsule maturity from the pollination date
	Maturation Milestone = "maturation"
)

// ParseMilestone accepts the canonical names, case-insensitively
func ParseMilestone(s string) (Milestone, error) {
	switch Milestone(strings.ToLower(strings.TrimSpace(s))) {
	case Germination:
		return Germination, nil
	case Maturation:
		return Maturation, nil
	}
	return "", errors.Newf("unknown milestone %q", s).
		Component("estimate").
		Category(errors.CategoryValidation).
		Build()
}

// Method identifies the cascade tier that produced a result
type Method string

const (
	MethodML         Method = "ML"
	MethodHistorical Method = "historical"
	MethodHeuristic  Method = "heuristic"
)

// Level is the coarse confidence bucket shown to users
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Confidence floors per method
const (
	HeuristicFloor  = 30.0
	HistoricalFloor = 60.0
	MLFloor         = 60.0
	MaxConfidence   = 100.0
)

// LevelFor maps a confidence score onto its level
func LevelFor(confidence float64) Level {
	switch {
	case confidence >= 80:
		return LevelHigh
	case confidence >= 60:
		return LevelMedium
	default:
		return LevelLow
	}
}

// ClampConfidence bounds a score to [floor, 100]
func ClampConfidence(confidence, floor float64) float64 {
	if confidence < floor {
		return floor
	}
	if confidence > MaxConfidence {
		return MaxConfidence
	}
	return confidence
}

// Date truncates t to its calendar date in its own location
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays returns the calendar date days after start
func AddDays(start time.Time, days int) time.Time {
	return Date(start).AddDate(0, 0, days)
}

// DaysBetween counts calendar days from a to b, negative when b is earlier
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	// UTC midnights avoid DST-length days
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
