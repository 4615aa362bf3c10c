// Package httpapi exposes predictions, record intake, health and metrics
// over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/orchidlab/labpredict/internal/datastore"
	"github.com/orchidlab/labpredict/internal/estimate"
	"github.com/orchidlab/labpredict/internal/intake"
	"github.com/orchidlab/labpredict/internal/logger"
	"github.com/orchidlab/labpredict/internal/notification"
	"github.com/orchidlab/labpredict/internal/reminder"
)

// Request body limit for JSON endpoints
const bodyLimit = "1M"

// Predictor serves prediction requests
type Predictor interface {
	Estimate(ctx context.Context, req estimate.Request) (estimate.Result, error)
	ModelLoaded(m estimate.Milestone) bool
	StatsVersion() string
}

// Registrar stores new records
type Registrar interface {
	RegisterGermination(ctx context.Context, g *datastore.Germination) (intake.Outcome, error)
	RegisterPollination(ctx context.Context, p *datastore.Pollination) (intake.Outcome, error)
	SetState(ctx context.Context, subject notification.Subject, state reminder.State) error
}

// Pinger checks a dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// BatchStatus reports the unix time of the last reminder batch
type BatchStatus interface {
	LastRun() float64
}

// Config lists the collaborators of a Server. Routes are omitted or degrade
// when their collaborator is nil.
type Config struct {
	Predictor Predictor
	Registrar Registrar
	Database  Pinger
	Batches   BatchStatus
	Metrics   http.Handler
	Version   string
	Logger    logger.Logger
}

// Server is the HTTP surface
type Server struct {
	Echo *echo.Echo

	predictor Predictor
	registrar Registrar
	database  Pinger
	batches   BatchStatus
	version   string
	log       logger.Logger
	startTime time.Time
}

// New builds a server with its routes registered
func New(cfg Config) *Server {
	s := &Server{
		Echo:      echo.New(),
		predictor: cfg.Predictor,
		registrar: cfg.Registrar,
		database:  cfg.Database,
		batches:   cfg.Batches,
		version:   cfg.Version,
		log:       cfg.Logger,
		startTime: time.Now(),
	}
	if s.log == nil {
		s.log = GetLogger()
	}

	e := s.Echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			s.log.Debug("http request", fields...)
			return nil
		},
	}))

	e.GET("/healthz", s.handleHealth)
	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics))
	}

	api := e.Group("/api/v1", middleware.BodyLimit(bodyLimit))
	api.POST("/predictions", s.handlePredict)
	if s.registrar != nil {
		api.POST("/germinations", s.handleCreateGermination)
		api.POST("/pollinations", s.handleCreatePollination)
		api.PUT("/germinations/:id/state", s.handleSetState(notification.SubjectGermination))
		api.PUT("/pollinations/:id/state", s.handleSetState(notification.SubjectPollination))
	}
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.log.Info("http server listening", logger.String("addr", addr))
	if err := s.Echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
