package reminder

import "github.com/orchidlab/labpredict/internal/logger"

// GetLogger returns the reminder package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("reminder")
}
