package httpapi

import "github.com/orchidlab/labpredict/internal/logger"

// GetLogger returns the httpapi package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("httpapi")
}
