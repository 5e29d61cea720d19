package server

import (
	"github.com/tphakala/ftbuffer/internal/conf"
	"github.com/tphakala/ftbuffer/internal/logger"
	"github.com/tphakala/ftbuffer/internal/observability/metrics"
)

// Config holds the listener and buffer sizing parameters.
type Config struct {
	Host       string
	Port       int
	PortSearch int     // further ports tried when Port is busy
	Window     float64 // seconds of samples retained
	MaxEvents  int
	MaxPayload uint32
	ReadAhead  int  // per-connection read buffer in bytes
	KeepAlive  bool // keep serving after a connection fault
}

// ConfigFromSettings maps the buffer section of the settings to a Config.
func ConfigFromSettings(s *conf.BufferSettings) Config {
	return Config{
		Host:       s.Host,
		Port:       s.Port,
		PortSearch: s.PortSearch,
		Window:     s.Window,
		MaxEvents:  s.MaxEvents,
		MaxPayload: s.MaxPayload,
		ReadAhead:  s.ReadAhead,
		KeepAlive:  s.KeepAlive,
	}
}

func (c *Config) applyDefaults() {
	if c.Window <= 0 {
		c.Window = conf.DefaultWindow
	}
	if c.MaxEvents <= 0 {
		c.MaxEvents = conf.DefaultMaxEvents
	}
	if c.MaxPayload == 0 {
		c.MaxPayload = conf.DefaultMaxPayload
	}
	if c.ReadAhead <= 0 {
		c.ReadAhead = conf.DefaultReadAhead
	}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger replaces the server module logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithRecorder routes request and state metrics to r.
func WithRecorder(r metrics.BufferRecorder) Option {
	return func(s *Server) { s.rec = r }
}
