// Package heuristic is the estimator of last resort: a fixed rule table of
// base durations per species family or genus, adjusted by climate,
// location and pollination type multipliers.
package heuristic

import (
	"strings"

	"github.com/orchidlab/labpredict/internal/estimate"
)

// ModelName is reported in results produced by this estimator
const ModelName = "heuristic-rules"

const (
	baseConfidence = 50.0
	missingSpecies = 20.0
	missingGenus   = 10.0

	minGerminationDays = 7
	minMaturationDays  = 30
)

// Rule is one row of the duration table
type Rule struct {
	Name        string
	BaseDays    int
	Factor      float64
	Variability int
	match       func(species, genus string) bool
}

func contains(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ordered; the first match wins
var germinationRules = []Rule{
	{"orchid", 45, 1.2, 10, func(sp, _ string) bool { return contains(sp, "orchid", "orquidea") }},
	{"cattleya", 40, 1.1, 8, func(_, g string) bool { return contains(g, "cattleya") }},
	{"phragmipedium", 120, 1.15, 20, func(sp, g string) bool { return contains(g, "phragmipedium") || contains(sp, "phragmipedium") }},
	{"lepanthes", 140, 1.2, 30, func(sp, g string) bool { return contains(g, "lepanthes") || contains(sp, "lepanthes") }},
}

var germinationDefault = Rule{Name: "default", BaseDays: 30, Factor: 1.0, Variability: 5}

var maturationRules = []Rule{
	{"orchid", 120, 1.3, 20, func(sp, _ string) bool { return contains(sp, "orchid", "orquidea") }},
	{"cattleya", 100, 1.2, 18, func(_, g string) bool { return contains(g, "cattleya") }},
}

var maturationDefault = Rule{Name: "default", BaseDays: 90, Factor: 1.0, Variability: 15}

var climateFactors = map[string]float64{
	"c":  0.8,
	"w":  1.2,
	"i":  1.0,
	"iw": 1.1,
	"ic": 0.9,
}

var typeFactors = map[string]float64{
	"SELF":    1.0,
	"SIBLING": 1.05,
	"HYBRID":  1.1,
}

// ClimateFactor returns the multiplier for a climate code, 1.0 if unknown
func ClimateFactor(climate string) float64 {
	if f, ok := climateFactors[estimate.FoldKey(climate)]; ok {
		return f
	}
	return 1.0
}

// LocationFactor returns the multiplier for a physical location
func LocationFactor(location string) float64 {
	loc := estimate.FoldKey(location)
	switch {
	case contains(loc, "laboratorio", "lab"):
		return 0.9
	case contains(loc, "vivero"):
		return 1.0
	case contains(loc, "finca"):
		return 1.1
	default:
		return 1.0
	}
}

// TypeFactor returns the multiplier for a pollination type
func TypeFactor(pollinationType string) float64 {
	if f, ok := typeFactors[estimate.NormalizeType(pollinationType)]; ok {
		return f
	}
	return 1.0
}

// Estimator applies the rule table. The zero value is ready to use.
type Estimator struct{}

// New returns a heuristic estimator
func New() *Estimator { return &Estimator{} }

// RuleFor returns the table row that applies to the request
func (e *Estimator) RuleFor(req *estimate.Request) Rule {
	species := estimate.FoldKey(req.Species)
	genus := estimate.FoldKey(req.Genus)

	rules, fallback := germinationRules, germinationDefault
	if req.Milestone == estimate.Maturation {
		rules, fallback = maturationRules, maturationDefault
	}
	for _, r := range rules {
		if r.match(species, genus) {
			return r
		}
	}
	return fallback
}

// Estimate always produces a result for a valid request. Days are the
// truncated product of the base duration and every applicable multiplier.
func (e *Estimator) Estimate(req *estimate.Request) (estimate.Result, error) {
	if err := req.Validate(); err != nil {
		return estimate.Result{}, err
	}

	rule := e.RuleFor(req)
	adjusted := float64(rule.BaseDays) * ClimateFactor(req.Climate) * rule.Factor

	minimum := minGerminationDays
	if req.Milestone == estimate.Maturation {
		adjusted *= LocationFactor(req.Location) * TypeFactor(req.PollinationType)
		minimum = minMaturationDays
	}

	days := int(adjusted)
	if days < minimum {
		days = minimum
	}

	res := estimate.NewResult(req, days, Confidence(req), estimate.HeuristicFloor, estimate.MethodHeuristic, ModelName)
	res.Variability = rule.Variability
	return res, nil
}

// Confidence is the capped score reduced for incomplete input, before
// clamping to the heuristic floor.
func Confidence(req *estimate.Request) float64 {
	c := baseConfidence
	if !req.HasSpecies() {
		c -= missingSpecies
	}
	if !req.HasGenus() {
		c -= missingGenus
	}
	return c
}
