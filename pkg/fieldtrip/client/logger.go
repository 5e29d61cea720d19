package client

import (
	"github.com/tphakala/ftbuffer/internal/errors"
	"github.com/tphakala/ftbuffer/internal/logger"
)

func init() {
	errors.RegisterComponent("pkg/fieldtrip/client", "client")
}

// GetLogger returns the default client logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("client")
}
