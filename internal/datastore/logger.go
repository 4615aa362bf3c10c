package datastore

import "github.com/orchidlab/labpredict/internal/logger"

// GetLogger returns the datastore logger
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}
