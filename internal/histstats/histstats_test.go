package histstats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/estimate"
)

func sampleTable() *Table {
	return NewTable(TableData{
		Species: []Stats{
			{Key: "Cattleya aurantiaca", Mean: 44, Median: 42, Std: 6, Min: 35, Max: 55, Count: 8, Q25: 39, Q75: 48},
			{Key: "Lepanthes calodictyon", Median: 150, Min: 120, Max: 170, Count: 3},
			{Key: "Lepanthes calodictyon var. alba", Median: 160, Min: 150, Max: 170, Count: 5},
			{Key: "Maxillaria tenuifolia", Median: 60, Min: 60, Max: 60, Count: 0},
		},
		Genus: []Stats{{Key: "Cattleya", Median: 45, Min: 30, Max: 70, Count: 20}},
		Type:  []Stats{{Key: "HYBRID", Median: 110, Min: 90, Max: 140, Count: 12}},
		GenusType: []GenusTypeRow{
			{Genus: "Cattleya", Type: "SELF", Stats: Stats{Key: "Cattleya/SELF", Mean: 98, Count: 4}},
		},
	})
}

func TestExactLookupIsCaseAndAccentInsensitive(t *testing.T) {
	t.Parallel()
	tbl := sampleTable()

	s, ok := tbl.Lookup("cattleya AURANTIACA")
	require.True(t, ok)
	assert.InDelta(t, 42, s.Median, 1e-9)
	assert.Equal(t, 8, s.Count)

	_, ok = tbl.Lookup("")
	assert.False(t, ok)
	_, ok = tbl.Lookup("aurantiaca")
	assert.False(t, ok, "exact tier must not match partial names")

	g, ok := tbl.LookupGenus("cáttleya")
	require.True(t, ok)
	assert.Equal(t, 20, g.Count)

	ty, ok := tbl.LookupType("hybrid")
	require.True(t, ok)
	assert.Equal(t, 12, ty.Count)

	gt, ok := tbl.LookupGenusType("CATTLEYA", "self")
	require.True(t, ok)
	assert.InDelta(t, 98, gt.Mean, 1e-9)
	_, ok = tbl.LookupGenusType("Cattleya", "")
	assert.False(t, ok)
}

func TestFuzzyLookupPrefersBestSupported(t *testing.T) {
	t.Parallel()
	tbl := sampleTable()

	s, ok := tbl.FuzzyLookup("calodictyon")
	require.True(t, ok)
	assert.Equal(t, "Lepanthes calodictyon var. alba", s.Key)

	// query containing a stored name also matches
	s, ok = tbl.FuzzyLookup("Cattleya aurantiaca (clone 3)")
	require.True(t, ok)
	assert.Equal(t, "Cattleya aurantiaca", s.Key)

	// rows without supporting records are never fuzzy matches
	_, ok = tbl.FuzzyLookup("tenuifolia")
	assert.False(t, ok)

	_, ok = tbl.FuzzyLookup("Dracula vampira")
	assert.False(t, ok)
}

func TestComputeStats(t *testing.T) {
	t.Parallel()

	s := Compute("x", []float64{40, 30, 50, 60})
	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 45, s.Mean, 1e-9)
	assert.InDelta(t, 45, s.Median, 1e-9)
	assert.InDelta(t, 30, s.Min, 1e-9)
	assert.InDelta(t, 60, s.Max, 1e-9)
	assert.InDelta(t, 30, s.Q25, 1e-9)
	assert.InDelta(t, 50, s.Q75, 1e-9)
	assert.Greater(t, s.Std, 0.0)
	assert.Equal(t, 45, s.RoundedMedian())

	empty := Compute("none", nil)
	assert.Zero(t, empty.Count)
	assert.Equal(t, 1, empty.RoundedMedian())

	one := Compute("one", []float64{12})
	assert.Zero(t, one.Std)
	assert.InDelta(t, 12, one.Median, 1e-9)
}

func TestLoadYAMLAndJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "stats.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
version: "2024.2"
germination:
  species:
    - {key: Cattleya aurantiaca, mean: 44, median: 42, std: 6, min: 35, max: 55, count: 8, q25: 39, q75: 48}
maturation:
  genus_type:
    - genus: Cattleya
      type: HYBRID
      stats: {mean: 120, median: 118, min: 100, max: 140, count: 6}
`), 0o600))

	store, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "2024.2", store.Version())
	s, ok := store.Table(estimate.Germination).Lookup("Cattleya aurantiaca")
	require.True(t, ok)
	assert.InDelta(t, 42, s.Median, 1e-9)
	_, ok = store.Table(estimate.Maturation).LookupGenusType("cattleya", "hybrid")
	assert.True(t, ok)

	jsonPath := filepath.Join(dir, "stats.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"germination":{"genus":[{"key":"Cattleya","median":45,"min":30,"max":70,"count":20}]}}`), 0o600))
	store, err = Load(jsonPath)
	require.NoError(t, err)
	_, ok = store.Table(estimate.Germination).LookupGenus("Cattleya")
	assert.True(t, ok)
	assert.True(t, store.Table(estimate.Maturation).Empty())
}

func TestLoadFailures(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	store, err := Load("")
	require.NoError(t, err)
	assert.True(t, store.Table(estimate.Germination).Empty())

	_, err = Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryStatsLoad))

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte(`{"germination": [`), 0o600))
	_, err = Load(corrupt)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryStatsLoad))

	inconsistent := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(inconsistent, []byte(`{"germination":{"species":[{"key":"x","median":90,"min":10,"max":50,"count":3}]}}`), 0o600))
	_, err = Load(inconsistent)
	require.Error(t, err)
}
