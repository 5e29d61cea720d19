package serve

import "github.com/tphakala/ftbuffer/internal/logger"

// GetLogger returns the serve command logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("main")
}
