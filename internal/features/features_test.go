package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchidlab/labpredict/internal/histstats"
)

func TestNewCalendar(t *testing.T) {
	t.Parallel()

	c := NewCalendar(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	assert.InDelta(t, 1, c.Month, 0)
	assert.InDelta(t, 15, c.DayOfYear, 0)
	assert.InDelta(t, 3, c.ISOWeek, 0)
	assert.InDelta(t, 1, c.Quarter, 0)
	assert.InDelta(t, 2024, c.Year, 0)
	assert.InDelta(t, math.Sin(2*math.Pi/12), c.MonthSin, 1e-12)
	assert.InDelta(t, math.Cos(2*math.Pi*15/365), c.DayCos, 1e-12)
	assert.InDelta(t, math.Sin(2*math.Pi*3/52), c.WeekSin, 1e-12)

	// ISO week of early January can belong to the previous year
	c = NewCalendar(time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.InDelta(t, 53, c.ISOWeek, 0)
	c = NewCalendar(time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC))
	assert.InDelta(t, 4, c.Quarter, 0)
}

func TestVectorsNamesMatchValues(t *testing.T) {
	t.Parallel()

	vectors := []Vector{&Germination{}, &Maturation{}}
	for _, v := range vectors {
		assert.Len(t, v.Values(), len(v.Names()))
		seen := map[string]bool{}
		for _, n := range v.Names() {
			assert.False(t, seen[n], "duplicate feature %q", n)
			seen[n] = true
		}
	}
}

func TestGerminationValues(t *testing.T) {
	t.Parallel()

	g := &Germination{
		SpeciesCode: 4,
		Calendar:    NewCalendar(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
		Quantity:    9,
		Stock:       3,
		Species:     NewSpeciesStats(histstats.Stats{Mean: 44, Median: 42, Count: 8, Q25: 39, Q75: 48}, true),
		Genus:       NewGroupStats(histstats.Stats{}, false),
	}
	values := g.Values()
	idx := indexOf(t, g.Names())

	assert.InDelta(t, 4, values[idx["species_code"]], 0)
	assert.InDelta(t, math.Log1p(9), values[idx["log_quantity"]], 1e-12)
	assert.InDelta(t, 3.0/9.0, values[idx["stock_ratio"]], 1e-12)
	assert.InDelta(t, 42, values[idx["species_median"]], 0)
	assert.InDelta(t, 9, values[idx["species_iqr"]], 0)
	assert.InDelta(t, 50, values[idx["genus_mean"]], 0, "missing genus stats use the default")
	assert.InDelta(t, 0, values[idx["genus_count"]], 0)
}

func TestMissingSpeciesStatsDefaults(t *testing.T) {
	t.Parallel()

	s := NewSpeciesStats(histstats.Stats{Median: 99}, false)
	assert.InDelta(t, 50, s.Mean, 0)
	assert.InDelta(t, 50, s.Median, 0)
	assert.Zero(t, s.Count)
	assert.Zero(t, s.IQR)
}

func TestValidateSchema(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateSchema(GerminationNames(), (&Germination{}).Names()))
	require.NoError(t, ValidateSchema(MaturationNames(), (&Maturation{}).Names()))

	short := GerminationNames()[:5]
	assert.Error(t, ValidateSchema(short, (&Germination{}).Names()))

	swapped := GerminationNames()
	swapped[0], swapped[1] = swapped[1], swapped[0]
	err := ValidateSchema(swapped, (&Germination{}).Names())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature 0")
}

func indexOf(t *testing.T, names []string) map[string]int {
	t.Helper()
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[n] = i
	}
	return idx
}
