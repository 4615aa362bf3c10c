package features

import "github.com/orchidlab/labpredict/internal/histstats"

// defaultCentral stands in for mean and median when a key has no stats row
const defaultCentral = 50.0

// SpeciesStats are the per-species aggregates used as model inputs
type SpeciesStats struct {
	Mean, Median, Std, Min, Max, Count, Q25, Q75, IQR float64
}

// NewSpeciesStats converts a stats row; ok=false yields the defaults
func NewSpeciesStats(s histstats.Stats, ok bool) SpeciesStats {
	if !ok {
		return SpeciesStats{Mean: defaultCentral, Median: defaultCentral}
	}
	return SpeciesStats{
		Mean:   s.Mean,
		Median: s.Median,
		Std:    s.Std,
		Min:    s.Min,
		Max:    s.Max,
		Count:  float64(s.Count),
		Q25:    s.Q25,
		Q75:    s.Q75,
		IQR:    s.IQR(),
	}
}

// GroupStats are the reduced aggregates used for genus and genus × type
type GroupStats struct {
	Mean, Std, Count float64
}

// NewGroupStats converts a stats row; ok=false yields the defaults
func NewGroupStats(s histstats.Stats, ok bool) GroupStats {
	if !ok {
		return GroupStats{Mean: defaultCentral}
	}
	return GroupStats{Mean: s.Mean, Std: s.Std, Count: float64(s.Count)}
}
