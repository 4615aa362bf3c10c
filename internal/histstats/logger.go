package histstats

import "github.com/orchidlab/labpredict/internal/logger"

// GetLogger returns the histstats logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("histstats")
}
