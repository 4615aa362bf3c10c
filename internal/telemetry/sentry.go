// Package telemetry initializes opt-in error reporting to Sentry
package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/orchidlab/labpredict/internal/conf"
	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/logger"
)

// Options complete the user settings with build metadata
type Options struct {
	Release     string
	Environment string
	// Transport replaces the HTTP transport, used by tests
	Transport sentry.Transport
}

// Init configures the Sentry client and installs it as the reporter for
// enhanced errors. It returns false without error when telemetry is off.
func Init(settings conf.TelemetrySettings, opts Options) (bool, error) {
	log := GetLogger()
	if !settings.Enabled || settings.DSN == "" {
		log.Debug("telemetry disabled")
		return false, nil
	}
	if opts.Environment == "" {
		opts.Environment = "production"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      opts.Environment,
		ServerName:       "",
		Release:          opts.Release,
		Transport:        opts.Transport,
		BeforeSend:       beforeSend,
	})
	if err != nil {
		return false, errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context("operation", "sentry_init").
			Build()
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	log.Info("telemetry enabled",
		logger.String("release", opts.Release),
		logger.String("environment", opts.Environment))
	return true, nil
}

// Flush waits up to timeout for buffered events and detaches the reporter
func Flush(timeout time.Duration) bool {
	errors.SetTelemetryReporter(nil)
	return sentry.Flush(timeout)
}

// beforeSend drops host and user identification from every event
func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	event.Request = nil
	return event
}
