// Package histstats is the read-only store of precomputed aggregate
// durations per species, genus, pollination type and genus × type.
package histstats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Stats summarizes observed milestone durations, in days, for one key
type Stats struct {
	Key    string  `json:"key" yaml:"key"`
	Mean   float64 `json:"mean" yaml:"mean"`
	Median float64 `json:"median" yaml:"median"`
	Std    float64 `json:"std" yaml:"std"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Count  int     `json:"count" yaml:"count"`
	Q25    float64 `json:"q25" yaml:"q25"`
	Q75    float64 `json:"q75" yaml:"q75"`
}

// IQR is the interquartile range
func (s Stats) IQR() float64 { return s.Q75 - s.Q25 }

// RoundedMedian is the median as a whole day count, never below one
func (s Stats) RoundedMedian() int {
	days := int(math.Round(s.Median))
	if days < 1 {
		return 1
	}
	return days
}

// Compute derives Stats from raw durations. Quantiles use the empirical
// CDF, matching how the packaged tables are produced.
func Compute(key string, durations []float64) Stats {
	s := Stats{Key: key, Count: len(durations)}
	if len(durations) == 0 {
		return s
	}
	sorted := append([]float64(nil), durations...)
	sort.Float64s(sorted)

	s.Mean, s.Std = stat.MeanStdDev(sorted, nil)
	if math.IsNaN(s.Std) {
		s.Std = 0
	}
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Median = median(sorted)
	s.Q25 = stat.Quantile(0.25, stat.Empirical, sorted, nil)
	s.Q75 = stat.Quantile(0.75, stat.Empirical, sorted, nil)
	return s
}

// median averages the two middle values for even lengths, which
// stat.Quantile's empirical kind does not do.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// check reports whether the row is internally consistent
func (s Stats) check() bool {
	if s.Count < 0 || s.Key == "" {
		return false
	}
	for _, v := range []float64{s.Mean, s.Median, s.Std, s.Min, s.Max, s.Q25, s.Q75} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if s.Count == 0 {
		return true
	}
	return s.Min <= s.Median && s.Median <= s.Max && s.Std >= 0
}
