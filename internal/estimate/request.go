package estimate

import (
	"strings"
	"time"

	"github.com/orchidlab/labpredict/internal/errors"
)

// Request is an immutable estimation input built per call
type Request struct {
	Milestone Milestone `json:"milestone"`
	StartDate time.Time `json:"start_date"`

	Species string `json:"species,omitempty"`
	Genus   string `json:"genus,omitempty"`
	Climate string `json:"climate,omitempty"`

	// maturation context
	Location        string `json:"location,omitempty"`
	PollinationType string `json:"pollination_type,omitempty"`
	Responsible     string `json:"responsible,omitempty"`

	Quantity  float64 `json:"quantity,omitempty"`
	Stock     float64 `json:"stock,omitempty"`     // germination seed stock
	Available float64 `json:"available,omitempty"` // maturation capsules available
}

// Validate reports input errors that make a tier unusable. The heuristic
// tier only needs a start date; ML tiers additionally need context fields.
func (r *Request) Validate() error {
	if r.StartDate.IsZero() {
		return errors.Newf("start date is required").
			Component("estimate").
			Category(errors.CategoryValidation).
			Context("milestone", string(r.Milestone)).
			Build()
	}
	if r.Milestone != Germination && r.Milestone != Maturation {
		return errors.Newf("unknown milestone %q", r.Milestone).
			Component("estimate").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// HasSpecies reports whether a non-blank species was supplied
func (r *Request) HasSpecies() bool { return strings.TrimSpace(r.Species) != "" }

// HasGenus reports whether a non-blank genus was supplied
func (r *Request) HasGenus() bool { return strings.TrimSpace(r.Genus) != "" }

// FullSpecies joins genus and species when the species lacks the genus
// prefix, which is how historical tables are keyed.
func (r *Request) FullSpecies() string {
	species := strings.TrimSpace(r.Species)
	genus := strings.TrimSpace(r.Genus)
	if genus == "" {
		return species
	}
	if species == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(species), strings.ToLower(genus)+" ") {
		return species
	}
	return genus + " " + species
}
