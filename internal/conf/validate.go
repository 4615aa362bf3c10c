// conf/validate.go

package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// CronParser is the 5-field parser shared by validation and the schedule command
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateDatabaseSettings,
		validateReminderSettings,
		validatePredictionSettings,
		validateNotificationSettings,
		validateTelemetrySettings,
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDatabaseSettings(s *Settings) error {
	switch s.Database.Type {
	case "sqlite":
		if s.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "mysql":
		if s.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for mysql")
		}
	default:
		return fmt.Errorf("database.type must be sqlite or mysql, got %q", s.Database.Type)
	}
	return nil
}

func validateReminderSettings(s *Settings) error {
	var problems []string
	r := s.Reminders
	if r.OffsetDays < 0 {
		problems = append(problems, "reminders.offsetdays must not be negative")
	}
	if r.LeadDays < 0 {
		problems = append(problems, "reminders.leaddays must not be negative")
	}
	switch r.ProximityMode {
	case ProximityExact, ProximityWindow:
	default:
		problems = append(problems, fmt.Sprintf("reminders.proximitymode must be exact or window, got %q", r.ProximityMode))
	}
	if r.Schedule != "" {
		if _, err := CronParser.Parse(r.Schedule); err != nil {
			problems = append(problems, fmt.Sprintf("reminders.schedule: %v", err))
		}
	}
	if r.Timezone != "" && r.Timezone != "Local" {
		if _, err := time.LoadLocation(r.Timezone); err != nil {
			problems = append(problems, fmt.Sprintf("reminders.timezone: %v", err))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, ", "))
	}
	return nil
}

func validatePredictionSettings(s *Settings) error {
	if s.Prediction.Workers < 1 {
		return fmt.Errorf("prediction.workers must be at least 1")
	}
	if s.Prediction.BatchSize < 1 {
		return fmt.Errorf("prediction.batchsize must be at least 1")
	}
	return nil
}

func validateNotificationSettings(s *Settings) error {
	n := s.Notifications
	if n.RateLimit < 0 {
		return fmt.Errorf("notifications.ratelimit must not be negative")
	}
	if n.RateLimit > 0 && n.RateWindow <= 0 {
		return fmt.Errorf("notifications.ratewindow must be positive when ratelimit is set")
	}
	return nil
}

func validateTelemetrySettings(s *Settings) error {
	if s.Telemetry.Enabled && s.Telemetry.DSN == "" {
		return fmt.Errorf("telemetry.dsn is required when telemetry is enabled")
	}
	return nil
}
