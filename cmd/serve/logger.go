package serve

import "github.com/orchidlab/labpredict/internal/logger"

// GetLogger returns the serve command logger
func GetLogger() logger.Logger {
	return logger.Global().Module("serve")
}
