// Package ml wraps a pre-fitted regression model and its categorical
// encoders. An Estimator is built once from an artifact, validated against
// the feature vector it will be fed, and is read-only afterwards.
package ml

import (
	"fmt"
	"math"
	"strings"

	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/estimate"
	"github.com/orchidlab/labpredict/internal/features"
	"github.com/orchidlab/labpredict/internal/histstats"
	"github.com/orchidlab/labpredict/internal/logger"
)

var (
	// ErrSchemaMismatch is returned when an artifact's declared features
	// do not match the vector built for its milestone.
	ErrSchemaMismatch = errors.NewStd("model feature schema mismatch")
	// ErrInvalidArtifact is returned for structurally broken artifacts
	ErrInvalidArtifact = errors.NewStd("invalid model artifact")
	// ErrNonFinite is returned when the model output is NaN or infinite
	ErrNonFinite = errors.NewStd("model produced a non-finite estimate")
)

// Encoder field names per milestone
const (
	FieldSpecies     = "species"
	FieldGenus       = "genus"
	FieldClimate     = "climate"
	FieldLocation    = "location"
	FieldResponsible = "responsible"
	FieldType        = "type"
)

var requiredEncoders = map[estimate.Milestone][]string{
	estimate.Germination: {FieldSpecies, FieldGenus, FieldClimate},
	estimate.Maturation:  {FieldGenus, FieldSpecies, FieldLocation, FieldResponsible, FieldType},
}

// Prediction is the raw output of the ML tier
type Prediction struct {
	Days             int
	Raw              float64
	UnseenCategories int
	Confidence       float64
}

// Estimator turns requests into day-count estimates
type Estimator struct {
	name           string
	milestone      estimate.Milestone
	model          Regressor
	encoders       map[string]*LabelEncoder
	stats          *histstats.Table
	baseConfidence float64
}

// Load reads the artifact at path and builds an estimator against the
// milestone table of stats.
func Load(path string, stats *histstats.Store) (*Estimator, error) {
	a, err := ReadArtifact(path)
	if err != nil {
		return nil, err
	}
	e, err := New(a, stats.Table(a.Milestone))
	if err != nil {
		return nil, errors.New(err).
			Component("ml").
			Category(errors.CategoryModelLoad).
			Context("path", path).
			Context("operation", "validate").
			Build()
	}
	GetLogger().Info("model loaded",
		logger.String("path", path),
		logger.String("model", e.name),
		logger.String("milestone", string(e.milestone)),
		logger.Int("features", len(a.Features)))
	return e, nil
}

// New validates an artifact and builds an estimator from it
func New(a *Artifact, stats *histstats.Table) (*Estimator, error) {
	var expected []string
	switch a.Milestone {
	case estimate.Germination:
		expected = features.GerminationNames()
	case estimate.Maturation:
		expected = features.MaturationNames()
	default:
		return nil, fmt.Errorf("%w: unknown milestone %q", ErrInvalidArtifact, a.Milestone)
	}

	if err := features.ValidateSchema(a.Features, expected); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaMismatch, err)
	}

	encoders := make(map[string]*LabelEncoder, len(a.Encoders))
	for field, classes := range a.Encoders {
		if field == FieldType {
			encoders[field] = NewTypeEncoder(classes)
			continue
		}
		encoders[field] = NewLabelEncoder(classes)
	}
	for _, field := range requiredEncoders[a.Milestone] {
		enc, ok := encoders[field]
		if !ok || enc.Len() == 0 {
			return nil, fmt.Errorf("%w: missing encoder %q", ErrInvalidArtifact, field)
		}
	}

	model, err := newRegressor(a.Model, len(expected))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}

	base := a.BaseConfidence
	if base <= 0 {
		base = DefaultBaseConfidence
	}
	if stats == nil {
		stats = histstats.NewTable(histstats.TableData{})
	}

	name := a.Name
	if name == "" {
		name = a.Model.Kind
	}
	if a.Version != "" {
		name += "@" + a.Version
	}

	return &Estimator{
		name:           name,
		milestone:      a.Milestone,
		model:          model,
		encoders:       encoders,
		stats:          stats,
		baseConfidence: base,
	}, nil
}

// Name identifies the model in results
func (e *Estimator) Name() string { return e.name }

// Milestone returns the milestone this model estimates
func (e *Estimator) Milestone() estimate.Milestone { return e.milestone }

// Seen reports whether value was a known class of the field's encoder
func (e *Estimator) Seen(field, value string) bool {
	return e.encoders[field].Known(value)
}

// encoding tracks which fields were known while a vector is built
type encoding struct {
	e      *Estimator
	unseen int
	seen   map[string]bool
}

func (c *encoding) code(field, value string) float64 {
	code, ok := c.e.encoders[field].Encode(value)
	if !ok {
		c.unseen++
	}
	c.seen[field] = ok
	return float64(code)
}

// Predict encodes the request, builds the feature vector, runs the model
// and scores the result. Unseen categorical values are substituted and
// counted, never rejected.
func (e *Estimator) Predict(req *estimate.Request) (Prediction, error) {
	if err := req.Validate(); err != nil {
		return Prediction{}, err
	}
	if req.Milestone != e.milestone {
		return Prediction{}, fmt.Errorf("model %s estimates %s, not %s", e.name, e.milestone, req.Milestone)
	}

	enc := &encoding{e: e, seen: make(map[string]bool, 5)}
	fullSpecies := req.FullSpecies()
	speciesRow, speciesOK := e.stats.Lookup(fullSpecies)
	genusRow, genusOK := e.stats.LookupGenus(req.Genus)

	var vec features.Vector
	switch e.milestone {
	case estimate.Germination:
		vec = &features.Germination{
			SpeciesCode: enc.code(FieldSpecies, fullSpecies),
			GenusCode:   enc.code(FieldGenus, req.Genus),
			ClimateCode: enc.code(FieldClimate, strings.ToUpper(strings.TrimSpace(req.Climate))),
			Calendar:    features.NewCalendar(req.StartDate),
			Quantity:    req.Quantity,
			Stock:       req.Stock,
			Species:     features.NewSpeciesStats(speciesRow, speciesOK),
			Genus:       features.NewGroupStats(genusRow, genusOK),
		}
	default:
		typ := estimate.NormalizeType(req.PollinationType)
		gtRow, gtOK := e.stats.LookupGenusType(req.Genus, typ)
		vec = &features.Maturation{
			GenusCode:       enc.code(FieldGenus, req.Genus),
			SpeciesCode:     enc.code(FieldSpecies, NormalizeSpecies(req.Species, req.Genus)),
			LocationCode:    enc.code(FieldLocation, NormalizeLocation(req.Location)),
			ResponsibleCode: enc.code(FieldResponsible, NormalizeResponsible(req.Responsible)),
			TypeCode:        enc.code(FieldType, typ),
			Calendar:        features.NewCalendar(req.StartDate),
			Quantity:        req.Quantity,
			Available:       req.Available,
			Species:         features.NewSpeciesStats(speciesRow, speciesOK),
			Genus:           features.NewGroupStats(genusRow, genusOK),
			GenusType:       features.NewGroupStats(gtRow, gtOK),
		}
	}

	raw := e.model.Predict(vec.Values())
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return Prediction{}, ErrNonFinite
	}

	days := int(math.Round(raw))
	if days < 1 {
		days = 1
	}

	support := 0
	if speciesOK {
		support = speciesRow.Count
	}

	confidence := MaturationConfidence(enc.unseen)
	if e.milestone == estimate.Germination {
		confidence = GerminationConfidence(e.baseConfidence, support,
			enc.seen[FieldSpecies], enc.seen[FieldGenus], enc.seen[FieldClimate], enc.unseen)
	}

	return Prediction{
		Days:             days,
		Raw:              raw,
		UnseenCategories: enc.unseen,
		Confidence:       confidence,
	}, nil
}

// maturationConfidence is the score of a maturation estimate with every
// category known
const maturationConfidence = 85.0

// unseenPenalty lowers a score by 5 per unseen category, at most 25
func unseenPenalty(unseen int) float64 {
	return math.Min(float64(5*unseen), 25)
}

// clampML bounds an ML score to [estimate.MLFloor, 99]
func clampML(c float64) float64 {
	return math.Max(estimate.MLFloor, math.Min(99, c))
}

// GerminationConfidence scores a germination estimate. The species support
// count and known categories raise the base, unseen categories lower it.
func GerminationConfidence(base float64, speciesSupport int, knownSpecies, knownGenus, knownClimate bool, unseen int) float64 {
	c := base
	switch {
	case speciesSupport > 10:
		c += 25
	case speciesSupport > 5:
		c += 15
	case speciesSupport > 0:
		c += 10
	}
	if knownSpecies {
		c += 10
	}
	if knownGenus {
		c += 5
	}
	if knownClimate {
		c += 5
	}
	return clampML(c - unseenPenalty(unseen))
}

// MaturationConfidence scores a maturation estimate from its unseen
// category count alone.
func MaturationConfidence(unseen int) float64 {
	return clampML(maturationConfidence - unseenPenalty(unseen))
}

// GetLogger returns the ml logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("ml")
}
