package telemetry

import (
	"github.com/tphakala/ftbuffer/internal/errors"
	"github.com/tphakala/ftbuffer/internal/logger"
)

func init() {
	errors.RegisterComponent("internal/telemetry", "telemetry")
}

// GetLogger returns the telemetry module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("sentry")
}
