package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/estimate"
	"github.com/orchidlab/labpredict/internal/logger"
	"github.com/orchidlab/labpredict/internal/notification"
	"github.com/orchidlab/labpredict/internal/observability/metrics"
)

// Category is one (record kind, reminder kind) pair processed by a batch run
type Category struct {
	Subject notification.SubjectKind
	Kind    notification.Kind
}

// Name returns the category label used in logs and metrics
func (c Category) Name() string {
	rule := "baseline"
	if c.Kind == notification.KindPredictionProximity {
		rule = "proximity"
	}
	return string(c.Subject) + "_" + rule
}

// Categories lists the batch categories in processing order
var Categories = []Category{
	{Subject: notification.SubjectGermination, Kind: notification.KindBaselineElapsed},
	{Subject: notification.SubjectPollination, Kind: notification.KindBaselineElapsed},
	{Subject: notification.SubjectGermination, Kind: notification.KindPredictionProximity},
	{Subject: notification.SubjectPollination, Kind: notification.KindPredictionProximity},
}

// RunOptions controls one batch run
type RunOptions struct {
	// ThresholdDays overrides both the baseline offset and the proximity
	// lead time when positive
	ThresholdDays int
	// DryRun evaluates and reports without creating notifications or
	// setting flags
	DryRun  bool
	Verbose bool
	// Today is the calendar day to evaluate on; zero means the clock's
	// current day in the configured timezone
	Today time.Time
}

// Planned is a reminder a dry run would have sent
type Planned struct {
	Subject   notification.Subject `json:"subject"`
	Code      string               `json:"code"`
	Recipient string               `json:"recipient"`
	Days      int                  `json:"days"`
}

// CategorySummary counts the outcomes of one category. Candidates is split
// into Due and Skipped, and Due into Sent, AlreadyNotified, Failed and, in
// dry runs, Planned.
type CategorySummary struct {
	Category        string    `json:"category"`
	Candidates      int       `json:"candidates"`
	Due             int       `json:"due"`
	Sent            int       `json:"sent"`
	AlreadyNotified int       `json:"already_notified"`
	Skipped         int       `json:"skipped"`
	Failed          int       `json:"failed"`
	Planned         []Planned `json:"planned,omitempty"`
}

// Summary is the result of a batch run
type Summary struct {
	RunID      string            `json:"run_id"`
	Today      time.Time         `json:"today"`
	DryRun     bool              `json:"dry_run"`
	Categories []CategorySummary `json:"categories"`
}

// Totals sums all categories
func (s Summary) Totals() CategorySummary {
	t := CategorySummary{Category: "total"}
	for _, c := range s.Categories {
		t.Candidates += c.Candidates
		t.Due += c.Due
		t.Sent += c.Sent
		t.AlreadyNotified += c.AlreadyNotified
		t.Skipped += c.Skipped
		t.Failed += c.Failed
		t.Planned = append(t.Planned, c.Planned...)
	}
	return t
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeAlreadyNotified
	outcomeFailed
)

// lastRunRecorder is implemented by metrics.ReminderMetrics
type lastRunRecorder interface {
	SetLastRun(unixSeconds float64)
}

// Scheduler runs the reminder rules over stored records and delivers the
// due reminders through a Sink.
type Scheduler struct {
	records   RecordStore
	sink      Sink
	evaluator *Evaluator
	locks     *Locker

	recorder metrics.Recorder
	lastRun  lastRunRecorder
	log      logger.Logger
	now      func() time.Time
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithMetrics records decisions and the last run time
func WithMetrics(m *metrics.ReminderMetrics) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.recorder = m
			s.lastRun = m
		}
	}
}

// WithRecorder records decisions on r
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Scheduler) {
		s.recorder = metrics.OrNop(r)
	}
}

// WithLogger overrides the package logger
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocker shares per-record locks between schedulers
func WithLocker(l *Locker) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.locks = l
		}
	}
}

// NewScheduler creates a scheduler
func NewScheduler(records RecordStore, sink Sink, evaluator *Evaluator, opts ...Option) *Scheduler {
	if evaluator == nil {
		evaluator = NewEvaluator(Rules{})
	}
	s := &Scheduler{
		records:   records,
		sink:      sink,
		evaluator: evaluator,
		locks:     NewLocker(),
		recorder:  metrics.NopRecorder{},
		log:       GetLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithStores returns a scheduler sharing configuration and locks with s but
// reading and writing through records and sink, typically bound to a
// transaction.
func (s *Scheduler) WithStores(records RecordStore, sink Sink) *Scheduler {
	clone := *s
	clone.records = records
	clone.sink = sink
	return &clone
}

// Evaluator returns the rule evaluator
func (s *Scheduler) Evaluator() *Evaluator { return s.evaluator }

// Run evaluates every category and delivers due reminders. A failure on
// one record is logged and counted without stopping the run; candidate
// query failures are returned joined after all categories ran.
func (s *Scheduler) Run(ctx context.Context, opts RunOptions) (Summary, error) {
	start := time.Now()
	ev := s.evaluator
	if opts.ThresholdDays > 0 {
		ev = ev.WithThreshold(opts.ThresholdDays)
	}

	today := ev.Today(s.now())
	if !opts.Today.IsZero() {
		today = estimate.Date(opts.Today)
	}

	sum := Summary{
		RunID:      uuid.NewString(),
		Today:      today,
		DryRun:     opts.DryRun,
		Categories: make([]CategorySummary, 0, len(Categories)),
	}
	log := s.log.With(logger.String("run_id", sum.RunID))
	log.Info("reminder run started",
		logger.Date("today", today),
		logger.Int("offset_days", ev.Rules().OffsetDays),
		logger.Int("lead_days", ev.Rules().LeadDays),
		logger.String("proximity_mode", string(ev.Rules().Mode)),
		logger.Bool("dry_run", opts.DryRun))

	var errs []error
	for _, cat := range Categories {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		cs, err := s.runCategory(ctx, log, ev, cat, today, opts)
		sum.Categories = append(sum.Categories, cs)
		if err != nil {
			errs = append(errs, err)
		}

		log.Info("reminder category finished",
			logger.String("category", cs.Category),
			logger.Int("candidates", cs.Candidates),
			logger.Int("due", cs.Due),
			logger.Int("sent", cs.Sent),
			logger.Int("already_notified", cs.AlreadyNotified),
			logger.Int("skipped", cs.Skipped),
			logger.Int("failed", cs.Failed))
	}

	err := errors.Join(errs...)
	s.recorder.RecordDuration(metrics.OpReminderRun, time.Since(start).Seconds())
	if err != nil {
		s.recorder.RecordOperation(metrics.OpReminderRun, metrics.StatusError)
	} else {
		s.recorder.RecordOperation(metrics.OpReminderRun, metrics.StatusSuccess)
	}
	if s.lastRun != nil && !opts.DryRun {
		s.lastRun.SetLastRun(float64(s.now().Unix()))
	}

	totals := sum.Totals()
	log.Info("reminder run finished",
		logger.Int("sent", totals.Sent),
		logger.Int("already_notified", totals.AlreadyNotified),
		logger.Int("failed", totals.Failed),
		logger.Duration("duration", time.Since(start)))
	return sum, err
}

func (s *Scheduler) runCategory(ctx context.Context, log logger.Logger, ev *Evaluator, cat Category, today time.Time, opts RunOptions) (CategorySummary, error) {
	cs := CategorySummary{Category: cat.Name()}
	log = log.With(logger.String("category", cs.Category))

	candidates, err := s.candidates(ctx, ev, cat, today)
	if err != nil {
		s.recorder.RecordError(cs.Category, "query")
		log.Error("candidate query failed", logger.Error(err))
		return cs, errors.New(err).
			Component("reminder").
			Category(errors.CategoryReminder).
			Context("category", cs.Category).
			Build()
	}
	cs.Candidates = len(candidates)

	for i := range candidates {
		c := &candidates[i]
		fields := []logger.Field{
			logger.String("subject", c.Subject.String()),
			logger.String("code", c.Code),
		}

		var d Decision
		if cat.Kind == notification.KindPredictionProximity {
			d = ev.ProximityDue(c, today)
		} else {
			d = ev.BaselineDue(c, today)
		}
		fields = append(fields, logger.Int("days", d.Days))

		if !d.Due {
			cs.Skipped++
			s.recorder.RecordOperation(cs.Category, metrics.StatusSkipped)
			if opts.Verbose {
				log.Info("reminder not due", append(fields, logger.String("reason", d.Reason))...)
			}
			continue
		}
		cs.Due++

		if opts.DryRun {
			cs.Planned = append(cs.Planned, Planned{Subject: c.Subject, Code: c.Code, Recipient: c.Owner(), Days: d.Days})
			s.recorder.RecordOperation(cs.Category, metrics.StatusDryRun)
			log.Info("dry run: reminder would be sent", append(fields, logger.String("recipient", c.Owner()))...)
			continue
		}

		payload := BuildPayload(cat.Kind, c, d.Days, today)
		switch out, err := s.deliver(ctx, cat.Kind, c, payload); out {
		case outcomeSent:
			cs.Sent++
			s.recorder.RecordOperation(cs.Category, metrics.StatusSent)
			if opts.Verbose {
				log.Info("reminder sent", fields...)
			}
		case outcomeAlreadyNotified:
			cs.AlreadyNotified++
			s.recorder.RecordOperation(cs.Category, metrics.StatusAlreadyNotified)
			if opts.Verbose {
				log.Info("reminder already notified", fields...)
			}
		case outcomeFailed:
			cs.Failed++
			s.recorder.RecordOperation(cs.Category, metrics.StatusFailed)
			s.recorder.RecordError(cs.Category, "deliver")
			log.Error("reminder delivery failed", append(fields, logger.Error(err))...)
		}
	}
	return cs, nil
}

func (s *Scheduler) candidates(ctx context.Context, ev *Evaluator, cat Category, today time.Time) ([]Candidate, error) {
	if cat.Kind == notification.KindPredictionProximity {
		from, to := ev.ProximityRange(today)
		return s.records.ProximityCandidates(ctx, cat.Subject, from, to)
	}
	return s.records.BaselineCandidates(ctx, cat.Subject, ev.BaselineDueBy(today))
}

// CheckOnCreate runs the baseline rule for one freshly stored record and
// sends the reminder right away when it is already due. It reports
// whether a notification was created.
func (s *Scheduler) CheckOnCreate(ctx context.Context, c Candidate) (bool, error) {
	start := time.Now()
	today := s.evaluator.Today(s.now())
	d := s.evaluator.BaselineDue(&c, today)
	if !d.Due {
		s.recorder.RecordOperation(metrics.OpReminderInline, metrics.StatusSkipped)
		return false, nil
	}

	payload := BuildPayload(notification.KindBaselineElapsed, &c, d.Days, today)
	payload[KeySentOnCreate] = true

	out, err := s.deliver(ctx, notification.KindBaselineElapsed, &c, payload)
	s.recorder.RecordDuration(metrics.OpReminderInline, time.Since(start).Seconds())
	switch out {
	case outcomeSent:
		s.recorder.RecordOperation(metrics.OpReminderInline, metrics.StatusSent)
		s.log.Info("catch-up reminder sent on create",
			logger.String("subject", c.Subject.String()),
			logger.Int("days_elapsed", d.Days))
		return true, nil
	case outcomeAlreadyNotified:
		s.recorder.RecordOperation(metrics.OpReminderInline, metrics.StatusAlreadyNotified)
		return false, nil
	default:
		s.recorder.RecordOperation(metrics.OpReminderInline, metrics.StatusFailed)
		return false, err
	}
}

// deliver performs check, create and flag for one record while holding the
// record's lock. The flag is only set once a notification is known to
// exist.
func (s *Scheduler) deliver(ctx context.Context, kind notification.Kind, c *Candidate, payload map[string]any) (outcome, error) {
	unlock := s.locks.Lock(lockKey(c.Subject, kind))
	defer unlock()

	recipient := c.Owner()
	exists, err := s.sink.Exists(ctx, recipient, c.Subject, kind)
	if err != nil {
		return outcomeFailed, err
	}
	if exists {
		s.markSent(ctx, kind, c.Subject)
		return outcomeAlreadyNotified, nil
	}

	if _, err := s.sink.Create(ctx, recipient, c.Subject, kind, payload); err != nil {
		if errors.Is(err, notification.ErrDuplicate) {
			s.markSent(ctx, kind, c.Subject)
			return outcomeAlreadyNotified, nil
		}
		return outcomeFailed, err
	}

	s.markSent(ctx, kind, c.Subject)
	return outcomeSent, nil
}

// markSent sets the idempotency flag. A failure leaves the flag unset and
// the next run repairs it through the exists check.
func (s *Scheduler) markSent(ctx context.Context, kind notification.Kind, subject notification.Subject) {
	var err error
	if kind == notification.KindPredictionProximity {
		_, err = s.records.MarkPredictionSent(ctx, subject)
	} else {
		_, err = s.records.MarkBaselineSent(ctx, subject)
	}
	if err != nil {
		s.recorder.RecordError(string(kind), "flag")
		s.log.Warn("failed to set reminder flag",
			logger.String("subject", subject.String()),
			logger.String("kind", string(kind)),
			logger.Error(err))
	}
}

func lockKey(subject notification.Subject, kind notification.Kind) string {
	return fmt.Sprintf("%s|%s", subject, kind)
}
