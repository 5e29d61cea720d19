package observability

import (
	"github.com/tphakala/ftbuffer/internal/errors"
	"github.com/tphakala/ftbuffer/internal/logger"
)

func init() {
	errors.RegisterComponent("internal/observability", "observability")
}

// GetLogger returns the telemetry module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}
