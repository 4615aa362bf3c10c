package app

import (
	"github.com/orchidlab/labpredict/internal/conf"
	"github.com/orchidlab/labpredict/internal/logger"
)

// InitLogging installs the global logger described by settings. The debug
// flag lowers the default level. The returned logger must be closed on exit.
func InitLogging(settings *conf.Settings) (*logger.CentralLogger, error) {
	cfg := settings.Logging
	if settings.Debug {
		cfg.DefaultLevel = "debug"
		cfg.Console.Level = "debug"
	}
	cl, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return nil, err
	}
	logger.SetGlobal(cl)
	return cl, nil
}

// GetLogger returns the app package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("app")
}
