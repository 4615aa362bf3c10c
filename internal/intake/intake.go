// Package intake registers new germination and pollination records. The
// insert, the prediction projection and the catch-up reminder share one
// database transaction.
package intake

import (
	"context"
	"time"

	"github.com/orchidlab/labpredict/internal/datastore"
	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/estimate"
	"github.com/orchidlab/labpredict/internal/logger"
	"github.com/orchidlab/labpredict/internal/notification"
	"github.com/orchidlab/labpredict/internal/reminder"
)

// Predictor estimates a milestone date
type Predictor interface {
	Estimate(ctx context.Context, req estimate.Request) (estimate.Result, error)
}

// Outcome describes what happened around a registered record
type Outcome struct {
	Subject      notification.Subject `json:"subject"`
	Prediction   *estimate.Result     `json:"prediction,omitempty"`
	ReminderSent bool                 `json:"reminder_sent"`
}

// Service registers records
type Service struct {
	ds        *datastore.DataStore
	predictor Predictor
	notifier  *notification.Service
	scheduler *reminder.Scheduler
	inline    bool
	log       logger.Logger
	now       func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithInlineReminders enables or disables the reminder check on create
func WithInlineReminders(enabled bool) Option {
	return func(s *Service) { s.inline = enabled }
}

// WithLogger overrides the package logger
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source for in-memory projection timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates an intake service. predictor and scheduler may be nil,
// which disables the respective step.
func NewService(ds *datastore.DataStore, predictor Predictor, notifier *notification.Service, scheduler *reminder.Scheduler, opts ...Option) *Service {
	s := &Service{
		ds:        ds,
		predictor: predictor,
		notifier:  notifier,
		scheduler: scheduler,
		inline:    true,
		log:       GetLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterGermination stores g, projects its germination estimate and sends
// the baseline reminder if it is already due. g is updated in place.
func (s *Service) RegisterGermination(ctx context.Context, g *datastore.Germination) (Outcome, error) {
	if g == nil {
		return Outcome{}, errors.Newf("germination cannot be nil").
			Component("intake").
			Category(errors.CategoryValidation).
			Build()
	}

	var out Outcome
	err := s.ds.Transaction(ctx, func(tx *datastore.DataStore) error {
		if err := tx.CreateGermination(ctx, g); err != nil {
			return err
		}
		out.Subject = notification.Subject{Kind: notification.SubjectGermination, ID: g.ID}

		if res, ok := s.predict(ctx, tx, estimate.Germination, g.ID, g.Request()); ok {
			g.Projection = datastore.NewProjection(res, s.now())
			out.Prediction = &res
		}
		out.ReminderSent = s.remind(ctx, tx, g.Candidate())
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	s.log.Info("germination registered",
		logger.Uint64("id", uint64(g.ID)),
		logger.String("code", g.Code),
		logger.Bool("predicted", out.Prediction != nil),
		logger.Bool("reminder_sent", out.ReminderSent))
	return out, nil
}

// RegisterPollination stores p, projects its maturation estimate and sends
// the baseline reminder if it is already due. p is updated in place.
func (s *Service) RegisterPollination(ctx context.Context, p *datastore.Pollination) (Outcome, error) {
	if p == nil {
		return Outcome{}, errors.Newf("pollination cannot be nil").
			Component("intake").
			Category(errors.CategoryValidation).
			Build()
	}

	var out Outcome
	err := s.ds.Transaction(ctx, func(tx *datastore.DataStore) error {
		if err := tx.CreatePollination(ctx, p); err != nil {
			return err
		}
		out.Subject = notification.Subject{Kind: notification.SubjectPollination, ID: p.ID}

		if res, ok := s.predict(ctx, tx, estimate.Maturation, p.ID, p.Request()); ok {
			p.Projection = datastore.NewProjection(res, s.now())
			out.Prediction = &res
		}
		out.ReminderSent = s.remind(ctx, tx, p.Candidate())
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	s.log.Info("pollination registered",
		logger.Uint64("id", uint64(p.ID)),
		logger.String("code", p.Code),
		logger.Bool("predicted", out.Prediction != nil),
		logger.Bool("reminder_sent", out.ReminderSent))
	return out, nil
}

// SetState moves a record to a new lifecycle state
func (s *Service) SetState(ctx context.Context, subject notification.Subject, state reminder.State) error {
	return s.ds.UpdateState(ctx, subject, state)
}

// predict estimates and stores the projection. A failure leaves the record
// without a prediction for a later refresh.
func (s *Service) predict(ctx context.Context, tx *datastore.DataStore, m estimate.Milestone, id uint, req estimate.Request) (estimate.Result, bool) {
	if s.predictor == nil {
		return estimate.Result{}, false
	}
	log := s.log.With(logger.String("milestone", string(m)), logger.Uint64("id", uint64(id)))

	res, err := s.predictor.Estimate(ctx, req)
	if err != nil {
		log.Warn("prediction failed, record stored without projection", logger.Error(err))
		return estimate.Result{}, false
	}
	if err := tx.SavePrediction(ctx, m, id, res); err != nil {
		log.Warn("failed to store prediction", logger.Error(err))
		return estimate.Result{}, false
	}
	return res, true
}

// remind runs the inline baseline check through stores bound to tx, so a
// rolled back record takes its notification with it. Failures are logged;
// the next batch run retries.
func (s *Service) remind(ctx context.Context, tx *datastore.DataStore, c reminder.Candidate) bool {
	if !s.inline || s.scheduler == nil || s.notifier == nil {
		return false
	}

	scoped := s.scheduler.WithStores(tx, s.notifier.WithStore(tx.Notifications()))
	sent, err := scoped.CheckOnCreate(ctx, c)
	if err != nil {
		s.log.Warn("inline reminder failed",
			logger.String("subject", c.Subject.String()),
			logger.Error(err))
		return false
	}
	return sent
}
