package conf

import (
	"github.com/tphakala/ftbuffer/internal/errors"
	"github.com/tphakala/ftbuffer/internal/logger"
)

func init() {
	errors.RegisterComponent("internal/conf", "configuration")
}

// GetLogger returns the config package logger scoped to the config module.
// The logger is fetched from the global logger each time so it follows the
// central logger once main has installed it.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
