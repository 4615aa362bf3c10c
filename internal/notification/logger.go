package notification

import "github.com/orchidlab/labpredict/internal/logger"

// GetLogger returns the notification package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("notification")
}
