// Package app assembles the prediction, datastore, notification, reminder
// and intake services from settings. Every command builds one App.
package app

import (
	"context"
	"time"

	"github.com/orchidlab/labpredict/internal/buildinfo"
	"github.com/orchidlab/labpredict/internal/conf"
	"github.com/orchidlab/labpredict/internal/datastore"
	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/httpapi"
	"github.com/orchidlab/labpredict/internal/intake"
	"github.com/orchidlab/labpredict/internal/logger"
	"github.com/orchidlab/labpredict/internal/notification"
	"github.com/orchidlab/labpredict/internal/observability"
	"github.com/orchidlab/labpredict/internal/prediction"
	"github.com/orchidlab/labpredict/internal/reminder"
	"github.com/orchidlab/labpredict/internal/telemetry"
)

const telemetryFlushTimeout = 2 * time.Second

// App holds the wired services
type App struct {
	Settings      *conf.Settings
	Build         *buildinfo.Context
	Metrics       *observability.Metrics
	Store         *datastore.DataStore
	Predictions   *prediction.Service
	Notifications *notification.Service
	Scheduler     *reminder.Scheduler
	Intake        *intake.Service

	telemetry bool
	log       logger.Logger
}

// New wires every service. On error, whatever was opened is closed again.
func New(settings *conf.Settings, build *buildinfo.Context) (*App, error) {
	if settings == nil {
		return nil, errors.Newf("settings are required").
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}
	a := &App{Settings: settings, Build: build, log: GetLogger()}
	if err := a.init(); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.log.Info("application initialized",
		logger.String("version", build.Version()),
		logger.String("settings", settings.String()),
		logger.Bool("telemetry", a.telemetry))
	return a, nil
}

func (a *App) init() error {
	settings := a.Settings
	var err error

	a.telemetry, err = telemetry.Init(settings.Telemetry, telemetry.Options{Release: a.Build.Release()})
	if err != nil {
		// startup continues without error reporting
		a.log.Warn("telemetry initialization failed", logger.Error(err))
	}

	if a.Metrics, err = observability.NewMetrics(); err != nil {
		return err
	}

	a.Predictions, err = prediction.Load(prediction.Options{
		GerminationModel: settings.Models.Germination,
		MaturationModel:  settings.Models.Maturation,
		StatsPath:        settings.Models.Stats,
		Metrics:          a.Metrics.Prediction,
	})
	if err != nil {
		return err
	}

	if a.Store, err = datastore.Open(settings.Database, datastore.WithMetrics(a.Metrics.Datastore)); err != nil {
		return err
	}

	a.Notifications = notification.NewService(a.Store.Notifications(), &notification.ServiceConfig{
		RateLimit:  settings.Notifications.RateLimit,
		RateWindow: settings.Notifications.RateWindow,
		CacheTTL:   settings.Notifications.CacheTTL,
		Recorder:   a.Metrics.Notification,
	})

	a.Scheduler = reminder.NewScheduler(a.Store, a.Notifications,
		reminder.NewEvaluator(reminder.RulesFromSettings(settings.Reminders)),
		reminder.WithMetrics(a.Metrics.Reminder))

	a.Intake = intake.NewService(a.Store, a.Predictions, a.Notifications, a.Scheduler,
		intake.WithInlineReminders(settings.Reminders.Inline))
	return nil
}

// Refresh recomputes stored predictions with the configured worker pool
func (a *App) Refresh(ctx context.Context, all bool) ([]prediction.RefreshSummary, error) {
	return a.Predictions.Refresh(ctx, a.Store, prediction.RefreshOptions{
		All:       all,
		Workers:   a.Settings.Prediction.Workers,
		BatchSize: a.Settings.Prediction.BatchSize,
	})
}

// Remind runs one reminder batch
func (a *App) Remind(ctx context.Context, opts reminder.RunOptions) (reminder.Summary, error) {
	return a.Scheduler.Run(ctx, opts)
}

// HTTPServer builds the HTTP surface over the wired services
func (a *App) HTTPServer() *httpapi.Server {
	return httpapi.New(httpapi.Config{
		Predictor: a.Predictions,
		Registrar: a.Intake,
		Database:  a.Store,
		Batches:   a.Metrics.Reminder,
		Metrics:   a.Metrics.Handler(),
		Version:   a.Build.Version(),
	})
}

// Close releases the datastore and flushes pending error reports
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
		a.Store = nil
	}
	if a.telemetry {
		telemetry.Flush(telemetryFlushTimeout)
		a.telemetry = false
	}
	return errors.Join(errs...)
}
