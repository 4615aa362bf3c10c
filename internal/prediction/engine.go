// Package prediction runs the estimation cascade: ML, then historical
// statistics, then the heuristic rule table. One Engine serves one
// milestone; the Service owns both engines and the loaded artifacts.
package prediction

import (
	"math"
	"time"

	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/estimate"
	"github.com/orchidlab/labpredict/internal/estimator/heuristic"
	"github.com/orchidlab/labpredict/internal/estimator/ml"
	"github.com/orchidlab/labpredict/internal/histstats"
	"github.com/orchidlab/labpredict/internal/logger"
	"github.com/orchidlab/labpredict/internal/observability/metrics"
)

// Historical confidence by support count
const (
	confidenceManyRecords = 85.0 // >= 6
	confidenceSomeRecords = 80.0 // 4-5
	confidenceFewRecords  = 75.0 // 1-3
	confidenceLooseMatch  = 70.0 // cap for fuzzy and genus matches

	mlAcceptConfidence = 70.0
)

// Historical source tags
const (
	SourceSpecies        = "species"
	SourceSpeciesSimilar = "species_similar"
	SourceGenus          = "genus"
)

// HistoricalModelName is reported on historical-tier results
const HistoricalModelName = "historical-median"

// Model is the ML tier as the engine sees it
type Model interface {
	Name() string
	Predict(req *estimate.Request) (ml.Prediction, error)
}

// Engine orchestrates the cascade for one milestone. It holds no mutable
// state; concurrent calls are safe.
type Engine struct {
	milestone estimate.Milestone
	model     Model // nil when the ML tier is disabled
	stats     *histstats.Table
	heuristic *heuristic.Estimator
	recorder  metrics.Recorder
	skips     *metrics.PredictionMetrics
	log       logger.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithMetrics records cascade outcomes on m
func WithMetrics(m *metrics.PredictionMetrics) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.recorder = m
			e.skips = m
		}
	}
}

// WithRecorder records cascade outcomes on r
func WithRecorder(r metrics.Recorder) EngineOption {
	return func(e *Engine) { e.recorder = metrics.OrNop(r) }
}

// WithLogger replaces the package logger
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine builds an engine. model may be nil, stats may be nil.
func NewEngine(m estimate.Milestone, model Model, stats *histstats.Table, opts ...EngineOption) *Engine {
	if stats == nil {
		stats = histstats.NewTable(histstats.TableData{})
	}
	e := &Engine{
		milestone: m,
		model:     model,
		stats:     stats,
		heuristic: heuristic.New(),
		recorder:  metrics.NopRecorder{},
		log:       GetLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Milestone returns the engine's milestone
func (e *Engine) Milestone() estimate.Milestone { return e.milestone }

// ModelLoaded reports whether the ML tier is active
func (e *Engine) ModelLoaded() bool { return e.model != nil }

// Estimate runs the cascade. It fails only when the heuristic tier fails,
// which happens for requests without a usable start date.
func (e *Engine) Estimate(req estimate.Request) (estimate.Result, error) {
	start := time.Now()
	req.Milestone = e.milestone
	op := metrics.OpEstimate + "_" + string(e.milestone)

	res, err := e.cascade(&req)
	e.recorder.RecordDuration(op, time.Since(start).Seconds())
	if err != nil {
		e.recorder.RecordOperation(op, metrics.StatusError)
		return estimate.Result{}, err
	}
	e.recorder.RecordOperation(op, string(res.Method))
	return res, nil
}

func (e *Engine) cascade(req *estimate.Request) (estimate.Result, error) {
	mlOut := e.tryML(req)
	if mlOut.OK() {
		r := mlOut.Result()
		if r.UnseenCategories == 0 && r.Confidence >= mlAcceptConfidence {
			return r, nil
		}
		reason := ReasonLowConfidence
		if r.UnseenCategories > 0 {
			reason = ReasonUnseen
		}
		e.skip(TierML, reason, req)
	} else {
		e.skip(TierML, mlOut.Reason(), req)
	}

	histOut := e.tryHistorical(req)
	if histOut.OK() {
		return histOut.Result(), nil
	}
	e.skip(TierHistorical, histOut.Reason(), req)

	// a low-confidence ML estimate beats the rule table
	if mlOut.OK() {
		return mlOut.Result(), nil
	}

	res, err := e.heuristic.Estimate(req)
	if err != nil {
		e.log.Warn("heuristic estimation failed",
			logger.String("milestone", string(e.milestone)),
			logger.Error(err))
		return estimate.Result{}, errors.New(err).
			Component("prediction").
			Category(errors.CategoryEstimation).
			Context("milestone", string(e.milestone)).
			Context("tier", TierHeuristic).
			Build()
	}
	return res, nil
}

func (e *Engine) skip(tier, reason string, req *estimate.Request) {
	if e.skips != nil {
		e.skips.RecordTierSkip(string(e.milestone), tier, reason)
	}
	e.log.Trace("tier skipped",
		logger.String("milestone", string(e.milestone)),
		logger.String("tier", tier),
		logger.String("reason", reason),
		logger.String("species", req.Species))
}

func (e *Engine) tryML(req *estimate.Request) Outcome {
	if e.model == nil {
		return Skip(ReasonNotLoaded)
	}
	if err := req.Validate(); err != nil {
		return Skip(ReasonInvalidInput)
	}
	p, err := e.model.Predict(req)
	if err != nil {
		e.log.Debug("model prediction failed",
			logger.String("milestone", string(e.milestone)),
			logger.String("model", e.model.Name()),
			logger.Error(err))
		return Skip(ReasonModelError)
	}
	res := estimate.NewResult(req, p.Days, p.Confidence, estimate.MLFloor, estimate.MethodML, e.model.Name())
	res.UnseenCategories = p.UnseenCategories
	return Ok(res)
}

func (e *Engine) tryHistorical(req *estimate.Request) Outcome {
	if err := req.Validate(); err != nil {
		return Skip(ReasonInvalidInput)
	}
	if !req.HasSpecies() && !req.HasGenus() {
		return Skip(ReasonNoSpecies)
	}

	species := req.FullSpecies()
	if s, ok := e.stats.Lookup(species); ok && s.Count >= 1 {
		return Ok(e.historicalResult(req, s, SourceSpecies, supportConfidence(s.Count)))
	}
	if s, ok := e.stats.FuzzyLookup(species); ok {
		return Ok(e.historicalResult(req, s, SourceSpeciesSimilar, math.Min(supportConfidence(s.Count), confidenceLooseMatch)))
	}
	if s, ok := e.stats.LookupGenus(req.Genus); ok && s.Count >= 1 {
		return Ok(e.historicalResult(req, s, SourceGenus, math.Min(supportConfidence(s.Count), confidenceLooseMatch)))
	}
	return Skip(ReasonNoData)
}

func (e *Engine) historicalResult(req *estimate.Request, s histstats.Stats, source string, confidence float64) estimate.Result {
	res := estimate.NewResult(req, s.RoundedMedian(), confidence, estimate.HistoricalFloor, estimate.MethodHistorical, HistoricalModelName)
	res.Source = source
	res.SupportCount = s.Count
	return res
}

func supportConfidence(count int) float64 {
	switch {
	case count >= 6:
		return confidenceManyRecords
	case count >= 4:
		return confidenceSomeRecords
	default:
		return confidenceFewRecords
	}
}

// GetLogger returns the prediction logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("prediction")
}
