package estimate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		confidence float64
		want       Level
	}{
		{100, LevelHigh},
		{80, LevelHigh},
		{79.9, LevelMedium},
		{60, LevelMedium},
		{59.99, LevelLow},
		{30, LevelLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.confidence), "confidence %v", tt.confidence)
	}
}

func TestNewResultClamps(t *testing.T) {
	t.Parallel()

	req := &Request{Milestone: Germination, StartDate: time.Date(2024, 1, 15, 13, 45, 0, 0, time.UTC)}

	r := NewResult(req, 0, 20, HeuristicFloor, MethodHeuristic, "heuristic")
	assert.Equal(t, 1, r.DaysEstimated)
	assert.Equal(t, time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), r.EstimatedDate)
	assert.InDelta(t, 30, r.Confidence, 1e-9)
	assert.Equal(t, LevelLow, r.ConfidenceLevel)

	r = NewResult(req, 42, 140, HistoricalFloor, MethodHistorical, "historical")
	assert.InDelta(t, 100, r.Confidence, 1e-9)
	assert.Equal(t, time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC), r.EstimatedDate)
}

func TestDaysBetweenAcrossDST(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/Bogota")
	require.NoError(t, err)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	assert.Equal(t, 5, DaysBetween(time.Date(2024, 3, 8, 23, 0, 0, 0, ny), time.Date(2024, 3, 13, 1, 0, 0, 0, ny)))
	assert.Equal(t, -3, DaysBetween(time.Date(2024, 1, 4, 0, 0, 0, 0, loc), time.Date(2024, 1, 1, 0, 0, 0, 0, loc)))
	assert.Equal(t, 0, DaysBetween(time.Date(2024, 1, 1, 0, 0, 0, 0, loc), time.Date(2024, 1, 1, 23, 59, 0, 0, loc)))
}

func TestParseMilestone(t *testing.T) {
	t.Parallel()

	m, err := ParseMilestone(" Maturation ")
	require.NoError(t, err)
	assert.Equal(t, Maturation, m)

	_, err = ParseMilestone("flowering")
	require.Error(t, err)
}

func TestRequestValidate(t *testing.T) {
	t.Parallel()

	req := &Request{Milestone: Germination}
	require.Error(t, req.Validate())

	req.StartDate = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, req.Validate())

	req.Milestone = "bloom"
	require.Error(t, req.Validate())
}

func TestFullSpecies(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Cattleya aurantiaca", (&Request{Genus: "Cattleya", Species: "aurantiaca"}).FullSpecies())
	assert.Equal(t, "Cattleya aurantiaca", (&Request{Genus: "Cattleya", Species: "Cattleya aurantiaca"}).FullSpecies())
	assert.Equal(t, "aurantiaca", (&Request{Species: "aurantiaca"}).FullSpecies())
	assert.Empty(t, (&Request{Genus: "Cattleya"}).FullSpecies())
}
