package features

import (
	"fmt"
	"math"
)

// Vector is a model input with a stable feature order
type Vector interface {
	Names() []string
	Values() []float64
}

var germinationNames = []string{
	"species_code", "genus_code", "climate_code",
	"month", "day_of_year", "iso_week", "quarter", "year",
	"month_sin", "month_cos", "day_of_year_sin", "day_of_year_cos",
	"log_quantity", "log_stock", "stock_ratio",
	"species_mean", "species_median", "species_std", "species_min", "species_max",
	"species_count", "species_q25", "species_q75", "species_iqr",
	"genus_mean", "genus_std", "genus_count",
}

// Germination is the input of the germination model
type Germination struct {
	SpeciesCode float64
	GenusCode   float64
	ClimateCode float64
	Calendar    Calendar
	Quantity    float64
	Stock       float64
	Species     SpeciesStats
	Genus       GroupStats
}

// Names returns the feature names in model order
func (g *Germination) Names() []string { return germinationNames }

// Values returns the feature values in model order
func (g *Germination) Values() []float64 {
	c := g.Calendar
	return []float64{
		g.SpeciesCode, g.GenusCode, g.ClimateCode,
		c.Month, c.DayOfYear, c.ISOWeek, c.Quarter, c.Year,
		c.MonthSin, c.MonthCos, c.DaySin, c.DayCos,
		math.Log1p(nonNegative(g.Quantity)), math.Log1p(nonNegative(g.Stock)), ratio(g.Stock, g.Quantity),
		g.Species.Mean, g.Species.Median, g.Species.Std, g.Species.Min, g.Species.Max,
		g.Species.Count, g.Species.Q25, g.Species.Q75, g.Species.IQR,
		g.Genus.Mean, g.Genus.Std, g.Genus.Count,
	}
}

var maturationNames = []string{
	"genus_code", "species_code", "location_code", "responsible_code", "type_code",
	"month", "day_of_year", "iso_week", "quarter", "year",
	"month_sin", "month_cos", "day_of_year_sin", "day_of_year_cos", "week_sin", "week_cos",
	"quantity", "available",
	"species_mean", "species_median", "species_std", "species_min", "species_max",
	"species_count", "species_q25", "species_q75", "species_iqr",
	"genus_mean", "genus_std", "genus_count",
	"genus_type_mean", "genus_type_count",
}

// Maturation is the input of the pollination-maturity model
type Maturation struct {
	GenusCode       float64
	SpeciesCode     float64
	LocationCode    float64
	ResponsibleCode float64
	TypeCode        float64
	Calendar        Calendar
	Quantity        float64
	Available       float64
	Species         SpeciesStats
	Genus           GroupStats
	GenusType       GroupStats
}

// Names returns the feature names in model order
func (m *Maturation) Names() []string { return maturationNames }

// Values returns the feature values in model order
func (m *Maturation) Values() []float64 {
	c := m.Calendar
	return []float64{
		m.GenusCode, m.SpeciesCode, m.LocationCode, m.ResponsibleCode, m.TypeCode,
		c.Month, c.DayOfYear, c.ISOWeek, c.Quarter, c.Year,
		c.MonthSin, c.MonthCos, c.DaySin, c.DayCos, c.WeekSin, c.WeekCos,
		m.Quantity, m.Available,
		m.Species.Mean, m.Species.Median, m.Species.Std, m.Species.Min, m.Species.Max,
		m.Species.Count, m.Species.Q25, m.Species.Q75, m.Species.IQR,
		m.Genus.Mean, m.Genus.Std, m.Genus.Count,
		m.GenusType.Mean, m.GenusType.Count,
	}
}

// GerminationNames returns a copy of the germination feature order
func GerminationNames() []string { return append([]string(nil), germinationNames...) }

// MaturationNames returns a copy of the maturation feature order
func MaturationNames() []string { return append([]string(nil), maturationNames...) }

// ValidateSchema checks that declared matches expected exactly, in length
// and position.
func ValidateSchema(declared, expected []string) error {
	if len(declared) != len(expected) {
		return fmt.Errorf("model declares %d features, vector has %d", len(declared), len(expected))
	}
	for i := range expected {
		if declared[i] != expected[i] {
			return fmt.Errorf("feature %d: model declares %q, vector has %q", i, declared[i], expected[i])
		}
	}
	return nil
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return nonNegative(num) / den
}
