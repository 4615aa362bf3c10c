package ml

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/estimate"
	"github.com/orchidlab/labpredict/internal/features"
	"github.com/orchidlab/labpredict/internal/histstats"
)

var jan15 = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func leaf(v float64) *float64 { return &v }

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// germinationArtifact predicts species_median + 3 through a linear model
func germinationArtifact() *Artifact {
	names := features.GerminationNames()
	coef := make([]float64, len(names))
	coef[indexOf(names, "species_median")] = 1
	return &Artifact{
		Name:      "germination-linear",
		Version:   "1",
		Milestone: estimate.Germination,
		Features:  names,
		Encoders: map[string][]string{
			FieldSpecies: {"Cattleya aurantiaca", "Cattleya trianae"},
			FieldGenus:   {"Cattleya", "Epidendrum"},
			FieldClimate: {"I", "C", "W"},
		},
		Model: ModelSpec{Kind: KindLinear, Intercept: 3, Coefficients: coef},
	}
}

func statsTable() *histstats.Table {
	return histstats.NewTable(histstats.TableData{
		Species: []histstats.Stats{{Key: "Cattleya aurantiaca", Mean: 44, Median: 42, Min: 35, Max: 55, Count: 8}},
		Genus:   []histstats.Stats{{Key: "Cattleya", Mean: 45, Median: 45, Min: 30, Max: 70, Count: 20}},
	})
}

func TestLinearPredictionWithKnownCategories(t *testing.T) {
	t.Parallel()

	e, err := New(germinationArtifact(), statsTable())
	require.NoError(t, err)
	assert.Equal(t, "germination-linear@1", e.Name())

	p, err := e.Predict(&estimate.Request{
		Milestone: estimate.Germination,
		StartDate: jan15,
		Genus:     "Cattleya",
		Species:   "aurantiaca",
		Climate:   "i",
	})
	require.NoError(t, err)
	assert.Equal(t, 45, p.Days)
	assert.Zero(t, p.UnseenCategories)
	// 60 base + 15 support + 10 + 5 + 5
	assert.InDelta(t, 95, p.Confidence, 1e-9)
}

func TestUnseenCategoriesLowerConfidenceWithoutFailing(t *testing.T) {
	t.Parallel()

	e, err := New(germinationArtifact(), statsTable())
	require.NoError(t, err)

	p, err := e.Predict(&estimate.Request{
		Milestone: estimate.Germination,
		StartDate: jan15,
		Genus:     "Dracula",
		Species:   "vampira",
		Climate:   "XX",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, p.UnseenCategories)
	// missing stats feed the default median of 50
	assert.Equal(t, 53, p.Days)
	// 60 - 15 stays at the ML floor
	assert.InDelta(t, estimate.MLFloor, p.Confidence, 1e-9)
	assert.False(t, e.Seen(FieldGenus, "Dracula"))
	assert.True(t, e.Seen(FieldGenus, "cattleya"))
}

func TestRawOutputClampedToOneDay(t *testing.T) {
	t.Parallel()

	a := germinationArtifact()
	a.Model.Intercept = -500
	e, err := New(a, statsTable())
	require.NoError(t, err)

	p, err := e.Predict(&estimate.Request{Milestone: estimate.Germination, StartDate: jan15, Species: "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Days)
	assert.Less(t, p.Raw, 0.0)
}

func TestTreeEnsembleMaturation(t *testing.T) {
	t.Parallel()

	names := features.MaturationNames()
	typeIdx := indexOf(names, "type_code")
	a := &Artifact{
		Name:      "maturation-trees",
		Milestone: estimate.Maturation,
		Features:  names,
		Encoders: map[string][]string{
			FieldGenus:       {"Cattleya"},
			FieldSpecies:     {"maxima"},
			FieldLocation:    {"V-0 M-1A P-A"},
			FieldResponsible: {"ANA ROJAS"},
			FieldType:        {"SELF", "HYBRID"},
		},
		BaseConfidence: 50,
		Model: ModelSpec{
			Kind:      KindTreeEnsemble,
			BaseScore: 80,
			Trees: []Tree{
				{Nodes: []Node{
					{Feature: typeIdx, Threshold: 0.5, Left: 1, Right: 2},
					{Leaf: leaf(10)},
					{Leaf: leaf(30.6)},
				}},
				{Nodes: []Node{{Leaf: leaf(-0.2)}}},
			},
		},
	}
	e, err := New(a, nil)
	require.NoError(t, err)

	p, err := e.Predict(&estimate.Request{
		Milestone:       estimate.Maturation,
		StartDate:       jan15,
		Genus:           "Cattleya",
		Species:         "Cattleya maxima",
		Location:        "V-0 - M-1A - P-0",
		Responsible:     "ana rojas",
		PollinationType: "Híbrido",
	})
	require.NoError(t, err)
	assert.Zero(t, p.UnseenCategories)
	// 80 + 30.6 - 0.2 = 110.4
	assert.Equal(t, 110, p.Days)
	assert.InDelta(t, 85, p.Confidence, 1e-9, "artifact base applies to germination only")

	p, err = e.Predict(&estimate.Request{
		Milestone:       estimate.Maturation,
		StartDate:       jan15,
		Genus:           "Cattleya",
		Species:         "maxima",
		PollinationType: "SELF",
	})
	require.NoError(t, err)
	assert.Equal(t, 90, p.Days)
	assert.Equal(t, 2, p.UnseenCategories, "location and responsible are unseen")
	assert.InDelta(t, 75, p.Confidence, 1e-9)
}

func TestNewRejectsBrokenArtifacts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Artifact)
		wantErr error
	}{
		{"reordered features", func(a *Artifact) { a.Features[0], a.Features[1] = a.Features[1], a.Features[0] }, ErrSchemaMismatch},
		{"short features", func(a *Artifact) { a.Features = a.Features[:3] }, ErrSchemaMismatch},
		{"missing encoder", func(a *Artifact) { delete(a.Encoders, FieldClimate) }, ErrInvalidArtifact},
		{"coefficient count", func(a *Artifact) { a.Model.Coefficients = a.Model.Coefficients[1:] }, ErrInvalidArtifact},
		{"unknown kind", func(a *Artifact) { a.Model.Kind = "svm" }, ErrInvalidArtifact},
		{"unknown milestone", func(a *Artifact) { a.Milestone = "flowering" }, ErrInvalidArtifact},
		{"backward child", func(a *Artifact) {
			a.Model = ModelSpec{Kind: KindTreeEnsemble, Trees: []Tree{{Nodes: []Node{{Feature: 0, Left: 0, Right: 1}, {Leaf: leaf(1)}}}}}
		}, ErrInvalidArtifact},
		{"feature out of range", func(a *Artifact) {
			a.Model = ModelSpec{Kind: KindTreeEnsemble, Trees: []Tree{{Nodes: []Node{{Feature: 999, Left: 1, Right: 2}, {Leaf: leaf(1)}, {Leaf: leaf(2)}}}}}
		}, ErrInvalidArtifact},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := germinationArtifact()
			tt.mutate(a)
			_, err := New(a, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadFromFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	stats := histstats.NewStore(histstats.Artifact{
		Germination: histstats.TableData{Species: []histstats.Stats{{Key: "Cattleya aurantiaca", Median: 42, Min: 35, Max: 55, Count: 8}}},
	})

	data, err := yaml.Marshal(germinationArtifact())
	require.NoError(t, err)
	yamlPath := filepath.Join(dir, "germination.yaml")
	require.NoError(t, os.WriteFile(yamlPath, data, 0o600))

	e, err := Load(yamlPath, stats)
	require.NoError(t, err)
	p, err := e.Predict(&estimate.Request{Milestone: estimate.Germination, StartDate: jan15, Species: "Cattleya aurantiaca"})
	require.NoError(t, err)
	assert.Equal(t, 45, p.Days)

	broken := germinationArtifact()
	broken.Features = broken.Features[1:]
	data, err = json.Marshal(broken)
	require.NoError(t, err)
	jsonPath := filepath.Join(dir, "germination.json")
	require.NoError(t, os.WriteFile(jsonPath, data, 0o600))

	_, err = Load(jsonPath, stats)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))

	_, err = Load(filepath.Join(dir, "absent.json"), stats)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
}

func TestGerminationConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    float64
		support int
		known   bool
		unseen  int
		want    float64
	}{
		{name: "all known, large support", base: 60, support: 20, known: true, want: 99},
		{name: "small support", base: 60, support: 3, want: 70},
		{name: "known categories offset one unseen", base: 60, support: 8, known: true, unseen: 1, want: 90},
		{name: "unseen held at floor", base: 60, unseen: 3, want: 60},
		{name: "penalty capped", base: 60, support: 20, unseen: 9, want: 60},
		{name: "low artifact base raised to floor", base: 20, unseen: 2, want: 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GerminationConfidence(tt.base, tt.support, tt.known, tt.known, tt.known, tt.unseen)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, estimate.MLFloor)
		})
	}
}

func TestMaturationConfidence(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 85, MaturationConfidence(0), 1e-9)
	assert.InDelta(t, 75, MaturationConfidence(2), 1e-9)
	assert.InDelta(t, 60, MaturationConfidence(5), 1e-9)
	assert.InDelta(t, 60, MaturationConfidence(12), 1e-9, "penalty capped at 25")
}

func TestGerminationUnseenCategoriesKeepFloor(t *testing.T) {
	t.Parallel()

	e, err := New(germinationArtifact(), nil)
	require.NoError(t, err)

	p, err := e.Predict(&estimate.Request{
		Milestone: estimate.Germination,
		StartDate: jan15,
		Genus:     "Zzz",
		Species:   "yyy",
		Climate:   "Q",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, p.UnseenCategories)
	assert.GreaterOrEqual(t, p.Confidence, estimate.MLFloor)
}

func TestTypeEncoderFoldsSiblingSpellings(t *testing.T) {
	t.Parallel()

	enc := NewTypeEncoder([]string{"SELF", "SIBBLING", "HYBRID"})
	for _, v := range []string{"SIBLING", "sibling", "Sibbling"} {
		code, seen := enc.Encode(v)
		assert.True(t, seen, v)
		assert.Equal(t, 1, code, v)
	}
	code, seen := enc.Encode("Híbrido")
	assert.True(t, seen)
	assert.Equal(t, 2, code)

	_, seen = NewLabelEncoder([]string{"SIBBLING"}).Encode("SIBLING")
	assert.False(t, seen, "plain encoders fold case and accents only")
}

func TestNormalizers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "maxima", NormalizeSpecies("Cattleya maxima", "cattleya"))
	assert.Equal(t, "antioquiae", NormalizeSpecies("antioquiae", "Acineta"))
	assert.Equal(t, "Cattleyana", NormalizeSpecies("Cattleyana", "Cattleya"))
	assert.Equal(t, "maxima", NormalizeSpecies(" maxima ", ""))

	assert.Equal(t, "V-0 M-1A P-A", NormalizeLocation("V-0 - M-1A - P-0"))
	assert.Equal(t, "V-1 M-10B P-B", NormalizeLocation("V-1 - M-10B - P-B"))
	assert.Equal(t, "V-2 M-5A", NormalizeLocation("V-2 M-5A"))
	assert.Equal(t, "V-3 P-C", NormalizeLocation("V-3 P-2"))

	assert.Equal(t, "ALEX PORTILLA", NormalizeResponsible(" alex portilla"))
}
