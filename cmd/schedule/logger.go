package schedule

import (
	"fmt"

	"github.com/orchidlab/labpredict/internal/logger"
)

// GetLogger returns the schedule command logger
func GetLogger() logger.Logger {
	return logger.Global().Module("schedule")
}

// cronLogger adapts the module logger to cron.Logger
type cronLogger struct {
	log logger.Logger
}

// Info implements cron.Logger. cron reports every wake-up here, so it goes to debug.
func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, fields(keysAndValues)...)
}

// Error implements cron.Logger
func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(keysAndValues []any) []logger.Field {
	out := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return out
}
