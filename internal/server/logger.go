package server

import (
	"github.com/tphakala/ftbuffer/internal/errors"
	"github.com/tphakala/ftbuffer/internal/logger"
)

func init() {
	errors.RegisterComponent("internal/server", "server")
}

// GetLogger returns the server module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("server")
}
