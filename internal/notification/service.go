package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/logger"
	"github.com/orchidlab/labpredict/internal/observability/metrics"
)

// Payload keys the service lifts into the notification title and message
const (
	PayloadTitle   = "title"
	PayloadMessage = "message"
)

// DefaultCacheTTL is how long a positive existence answer is cached
const DefaultCacheTTL = 10 * time.Minute

// ServiceConfig holds the notification service settings
type ServiceConfig struct {
	// RateLimit is the number of creations allowed per RateWindow; 0 disables limiting
	RateLimit int
	// RateWindow is the time window for RateLimit
	RateWindow time.Duration
	// CacheTTL is the lifetime of cached existence answers; 0 disables the cache
	CacheTTL time.Duration
	// Recorder receives operation metrics
	Recorder metrics.Recorder
	// Logger overrides the package logger
	Logger logger.Logger
}

// DefaultServiceConfig returns a default configuration
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		RateWindow: time.Minute,
		CacheTTL:   DefaultCacheTTL,
	}
}

// Service creates and checks reminder notifications on top of a Store
type Service struct {
	store    Store
	limiter  *rate.Limiter
	cache    *cache.Cache
	recorder metrics.Recorder
	log      logger.Logger
}

// NewService creates a notification service backed by store
func NewService(store Store, config *ServiceConfig) *Service {
	if config == nil {
		config = DefaultServiceConfig()
	}

	s := &Service{
		store:    store,
		recorder: metrics.OrNop(config.Recorder),
		log:      config.Logger,
	}
	if s.log == nil {
		s.log = GetLogger()
	}
	if config.RateLimit > 0 && config.RateWindow > 0 {
		every := config.RateWindow / time.Duration(config.RateLimit)
		s.limiter = rate.NewLimiter(rate.Every(every), config.RateLimit)
	}
	if config.CacheTTL > 0 {
		// Notifications are never deleted, so only positive answers are cached
		s.cache = cache.New(config.CacheTTL, 2*config.CacheTTL)
	}

	s.log.Debug("notification service initialized",
		logger.Int("rate_limit", config.RateLimit),
		logger.Duration("rate_window", config.RateWindow),
		logger.Duration("cache_ttl", config.CacheTTL))

	return s
}

// WithStore returns a service writing to store, typically a transaction-scoped
// store. The copy shares the rate limiter but has no existence cache, since
// rows written inside a transaction may still be rolled back.
func (s *Service) WithStore(store Store) *Service {
	clone := *s
	clone.store = store
	clone.cache = nil
	return &clone
}

// Create stores a new notification and returns its ID. A notification with the
// same (recipient, subject, kind) yields ErrDuplicate.
func (s *Service) Create(ctx context.Context, recipient string, subject Subject, kind Kind, payload map[string]any) (string, error) {
	start := time.Now()

	if err := validate(recipient, subject, kind); err != nil {
		s.recorder.RecordError(metrics.OpNotificationCreate, "validation")
		return "", err
	}

	if err := s.wait(ctx); err != nil {
		s.recorder.RecordError(metrics.OpNotificationCreate, "rate_limit")
		return "", err
	}

	n := NewNotification(recipient, subject, kind, payload)
	title, _ := payload[PayloadTitle].(string)
	message, _ := payload[PayloadMessage].(string)
	n.WithText(title, message)

	if err := s.store.Save(ctx, n); err != nil {
		if errors.Is(err, ErrDuplicate) {
			s.remember(n.Key())
			s.recorder.RecordOperation(metrics.OpNotificationCreate, metrics.StatusDuplicate)
			return "", ErrDuplicate
		}
		s.recorder.RecordError(metrics.OpNotificationCreate, "store")
		return "", errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("operation", "create").
			Context("subject", subject.String()).
			Context("kind", string(kind)).
			Build()
	}

	s.remember(n.Key())
	s.recorder.RecordOperation(metrics.OpNotificationCreate, metrics.StatusSuccess)
	s.recorder.RecordDuration(metrics.OpNotificationCreate, time.Since(start).Seconds())

	s.log.Debug("notification created",
		logger.String("id", n.ID),
		logger.String("recipient", recipient),
		logger.String("subject", subject.String()),
		logger.String("kind", string(kind)))

	return n.ID, nil
}

// Exists reports whether a notification of kind exists for recipient and subject
func (s *Service) Exists(ctx context.Context, recipient string, subject Subject, kind Kind) (bool, error) {
	key := Key{Recipient: recipient, Subject: subject, Kind: kind}

	if s.cache != nil {
		if _, found := s.cache.Get(key.String()); found {
			s.recorder.RecordOperation(metrics.OpNotificationExists, metrics.StatusCacheHit)
			return true, nil
		}
		s.recorder.RecordOperation(metrics.OpNotificationExists, metrics.StatusCacheMiss)
	}

	ok, err := s.store.Exists(ctx, key)
	if err != nil {
		s.recorder.RecordError(metrics.OpNotificationExists, "store")
		return false, errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("operation", "exists").
			Context("subject", subject.String()).
			Context("kind", string(kind)).
			Build()
	}
	if ok {
		s.remember(key)
	}
	return ok, nil
}

// Get returns a notification by ID
func (s *Service) Get(ctx context.Context, id string) (*Notification, error) {
	return s.store.Get(ctx, id)
}

// List returns notifications matching filter
func (s *Service) List(ctx context.Context, filter *FilterOptions) ([]*Notification, error) {
	return s.store.List(ctx, filter)
}

func (s *Service) remember(key Key) {
	if s.cache != nil {
		s.cache.SetDefault(key.String(), true)
	}
}

// wait blocks until the rate limiter admits one creation or ctx is done
func (s *Service) wait(ctx context.Context) error {
	if s.limiter == nil {
		return ctx.Err()
	}

	r := s.limiter.Reserve()
	if !r.OK() {
		return ErrRateLimited
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}

	s.recorder.RecordOperation(metrics.OpNotificationCreate, metrics.StatusRateLimited)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return fmt.Errorf("%w: %w", ErrRateLimited, ctx.Err())
	}
}

func validate(recipient string, subject Subject, kind Kind) error {
	var problems []string
	if strings.TrimSpace(recipient) == "" {
		problems = append(problems, "recipient is required")
	}
	if subject.Kind != SubjectGermination && subject.Kind != SubjectPollination {
		problems = append(problems, fmt.Sprintf("unknown subject kind %q", subject.Kind))
	}
	if subject.ID == 0 {
		problems = append(problems, "subject id is required")
	}
	if !kind.Valid() {
		problems = append(problems, fmt.Sprintf("unknown notification kind %q", kind))
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.Newf("invalid notification: %s", strings.Join(problems, "; ")).
		Component("notification").
		Category(errors.CategoryValidation).
		Build()
}
