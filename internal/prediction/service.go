package prediction

import (
	"context"

	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/estimate"
	"github.com/orchidlab/labpredict/internal/estimator/ml"
	"github.com/orchidlab/labpredict/internal/histstats"
	"github.com/orchidlab/labpredict/internal/logger"
	"github.com/orchidlab/labpredict/internal/observability/metrics"
)

// ErrNoEngine is returned for a milestone the service has no engine for
var ErrNoEngine = errors.NewStd("no prediction engine for milestone")

// Options lists the artifacts to load. An empty model path disables the
// ML tier for that milestone.
type Options struct {
	GerminationModel string
	MaturationModel  string
	StatsPath        string
	Metrics          *metrics.PredictionMetrics
}

// Service is the loaded prediction subsystem: the stats snapshot and one
// engine per milestone. It is constructed once and shared by reference.
type Service struct {
	stats   *histstats.Store
	engines map[estimate.Milestone]*Engine
}

// Load reads every artifact. A stats artifact that cannot be loaded is an
// error. A model that cannot be loaded is logged once and its milestone
// runs without the ML tier for the life of the service.
func Load(opts Options) (*Service, error) {
	log := GetLogger()

	stats, err := histstats.Load(opts.StatsPath)
	if err != nil {
		return nil, err
	}

	models := make(map[estimate.Milestone]Model, 2)
	for milestone, path := range map[estimate.Milestone]string{
		estimate.Germination: opts.GerminationModel,
		estimate.Maturation:  opts.MaturationModel,
	} {
		if path == "" {
			log.Info("no model configured, ML tier disabled", logger.String("milestone", string(milestone)))
			continue
		}
		model, err := loadModel(path, milestone, stats)
		if opts.Metrics != nil {
			opts.Metrics.SetModelLoaded(string(milestone), err == nil)
			status := metrics.StatusSuccess
			if err != nil {
				status = metrics.StatusError
			}
			opts.Metrics.RecordOperation(metrics.OpModelLoad, status)
		}
		if err != nil {
			log.Warn("model unavailable, ML tier disabled",
				logger.String("milestone", string(milestone)),
				logger.String("path", path),
				logger.Error(err))
			continue
		}
		models[milestone] = model
	}

	var engineOpts []EngineOption
	if opts.Metrics != nil {
		engineOpts = append(engineOpts, WithMetrics(opts.Metrics))
	}
	return NewService(stats, models, engineOpts...), nil
}

func loadModel(path string, milestone estimate.Milestone, stats *histstats.Store) (*ml.Estimator, error) {
	model, err := ml.Load(path, stats)
	if err != nil {
		return nil, err
	}
	if model.Milestone() != milestone {
		return nil, errors.Newf("model %s estimates %s, configured for %s", model.Name(), model.Milestone(), milestone).
			Component("prediction").
			Category(errors.CategoryModelLoad).
			Context("path", path).
			Build()
	}
	return model, nil
}

// NewService assembles a service from already loaded parts. models may
// omit a milestone; stats may be nil.
func NewService(stats *histstats.Store, models map[estimate.Milestone]Model, opts ...EngineOption) *Service {
	if stats == nil {
		stats = histstats.Empty()
	}
	s := &Service{stats: stats, engines: make(map[estimate.Milestone]*Engine, 2)}
	for _, m := range []estimate.Milestone{estimate.Germination, estimate.Maturation} {
		s.engines[m] = NewEngine(m, models[m], stats.Table(m), opts...)
	}
	return s
}

// Engine returns the engine for a milestone
func (s *Service) Engine(m estimate.Milestone) (*Engine, error) {
	e, ok := s.engines[m]
	if !ok {
		return nil, errors.New(ErrNoEngine).
			Component("prediction").
			Category(errors.CategoryValidation).
			Context("milestone", string(m)).
			Build()
	}
	return e, nil
}

// Estimate dispatches req to the engine of its milestone
func (s *Service) Estimate(ctx context.Context, req estimate.Request) (estimate.Result, error) {
	if err := ctx.Err(); err != nil {
		return estimate.Result{}, err
	}
	e, err := s.Engine(req.Milestone)
	if err != nil {
		return estimate.Result{}, err
	}
	return e.Estimate(req)
}

// ModelLoaded reports whether the ML tier is active for a milestone
func (s *Service) ModelLoaded(m estimate.Milestone) bool {
	e, ok := s.engines[m]
	return ok && e.ModelLoaded()
}

// StatsVersion returns the version of the loaded stats artifact
func (s *Service) StatsVersion() string { return s.stats.Version() }
