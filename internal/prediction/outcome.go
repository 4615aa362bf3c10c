package prediction

import "github.com/orchidlab/labpredict/internal/estimate"

// Tier names used in logs and metrics
const (
	TierML         = "ml"
	TierHistorical = "historical"
	TierHeuristic  = "heuristic"
)

// Skip reasons
const (
	ReasonNotLoaded     = "not_loaded"
	ReasonInvalidInput  = "invalid_input"
	ReasonModelError    = "model_error"
	ReasonLowConfidence = "low_confidence"
	ReasonUnseen        = "unseen_categories"
	ReasonNoData        = "no_historical_data"
	ReasonNoSpecies     = "no_species_or_genus"
)

// Outcome is the tagged result of one cascade tier: either Ok with a
// result, or Skip with a reason.
type Outcome struct {
	result estimate.Result
	reason string
	ok     bool
}

// Ok wraps a usable tier result
func Ok(r estimate.Result) Outcome { return Outcome{result: r, ok: true} }

// Skip records why a tier produced nothing
func Skip(reason string) Outcome { return Outcome{reason: reason} }

// OK reports whether the tier produced a result
func (o Outcome) OK() bool { return o.ok }

// Result returns the tier result; only meaningful when OK
func (o Outcome) Result() estimate.Result { return o.result }

// Reason returns the skip reason; empty when OK
func (o Outcome) Reason() string { return o.reason }
