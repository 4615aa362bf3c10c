// Package conf loads labpredict settings from file, environment and flags.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/logger"
)

// Settings is the root configuration structure
type Settings struct {
	Debug bool `mapstructure:"debug"`

	Logging       logger.LoggingConfig `mapstructure:"logging"`
	Database      DatabaseSettings     `mapstructure:"database"`
	Models        ModelSettings        `mapstructure:"models"`
	Prediction    PredictionSettings   `mapstructure:"prediction"`
	Reminders     ReminderSettings     `mapstructure:"reminders"`
	Notifications NotificationSettings `mapstructure:"notifications"`
	Server        ServerSettings       `mapstructure:"server"`
	Telemetry     TelemetrySettings    `mapstructure:"telemetry"`
}

// DatabaseSettings selects the record and notification store
type DatabaseSettings struct {
	Type string `mapstructure:"type"` // sqlite or mysql
	Path string `mapstructure:"path"` // sqlite file path, ":memory:" allowed
	DSN  string `mapstructure:"dsn"`  // mysql DSN
}

// ModelSettings points at the packaged model and stats artifacts.
// An empty model path disables the ML tier for that milestone.
type ModelSettings struct {
	Germination string `mapstructure:"germination"`
	Maturation  string `mapstructure:"maturation"`
	Stats       string `mapstructure:"stats"`
}

// PredictionSettings controls the batch refresh
type PredictionSettings struct {
	Workers   int `mapstructure:"workers"`
	BatchSize int `mapstructure:"batchsize"`
}

// ProximityMode selects how the prediction-proximity rule compares days
type ProximityMode string

const (
	// ProximityExact fires only when the remaining days equal the lead time
	ProximityExact ProximityMode = "exact"
	// ProximityWindow fires whenever the remaining days are within [0, lead]
	ProximityWindow ProximityMode = "window"
)

// ReminderSettings controls reminder evaluation and the batch trigger
type ReminderSettings struct {
	OffsetDays    int           `mapstructure:"offsetdays"`
	LeadDays      int           `mapstructure:"leaddays"`
	ProximityMode ProximityMode `mapstructure:"proximitymode"`
	Schedule      string        `mapstructure:"schedule"` // 5-field cron expression
	Timezone      string        `mapstructure:"timezone"`
	Inline        bool          `mapstructure:"inline"` // run the catch-up check on record creation
}

// Location resolves the reminder timezone, falling back to local time
func (r ReminderSettings) Location() *time.Location {
	if r.Timezone == "" || r.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// NotificationSettings tunes the notification service
type NotificationSettings struct {
	RateLimit  int           `mapstructure:"ratelimit"`  // creations allowed per window, 0 disables
	RateWindow time.Duration `mapstructure:"ratewindow"` // window for RateLimit
	CacheTTL   time.Duration `mapstructure:"cachettl"`   // positive exists() cache lifetime
}

// ServerSettings configures the HTTP surface
type ServerSettings struct {
	Listen string `mapstructure:"listen"`
}

// TelemetrySettings configures error reporting
type TelemetrySettings struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

const (
	configName = "labpredict"
	envPrefix  = "LABPREDICT"
)

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration into a new Settings value. configFile may be
// empty, in which case the default search paths are used and a missing file
// is not an error.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settings, nil
}

// initViper registers defaults, env overrides and reads the config file
func initViper(configFile string) error {
	setDefaultConfig()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
		for _, path := range GetDefaultConfigPaths() {
			viper.AddConfigPath(path)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "read_config").
			Context("config_file", configFile).
			Build()
	}
	return nil
}

// GetDefaultConfigPaths returns the directories searched for labpredict.yaml
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "windows" {
			paths = append(paths, filepath.Join(home, "AppData", "Roaming", configName))
		} else {
			paths = append(paths, filepath.Join(home, ".config", configName))
		}
	}
	if runtime.GOOS != "windows" {
		paths = append(paths, filepath.Join("/etc", configName))
	}
	return paths
}

// GetSettings returns the most recently loaded settings, or nil
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// String renders a short, credential-free summary for startup logs
func (s *Settings) String() string {
	dsn := s.Database.Path
	if s.Database.Type == "mysql" {
		dsn = logger.RedactSensitiveData(s.Database.DSN)
	}
	return fmt.Sprintf("db=%s(%s) proximity=%s offset=%d lead=%d schedule=%q",
		s.Database.Type, dsn, s.Reminders.ProximityMode, s.Reminders.OffsetDays,
		s.Reminders.LeadDays, s.Reminders.Schedule)
}
