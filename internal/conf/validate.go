// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateBufferSettings(&settings.Buffer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateClientSettings(&settings.Client); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateTelemetrySettings(&settings.Telemetry); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSentrySettings(&settings.Sentry); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateLoggingSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// validateBufferSettings validates the buffer server settings
func validateBufferSettings(settings *BufferSettings) error {
	var errs []string

	if err := validatePort(settings.Port); err != nil {
		errs = append(errs, "buffer: "+err.Error())
	}
	if settings.PortSearch < 0 || settings.Port+settings.PortSearch > 65535 {
		errs = append(errs, fmt.Sprintf("buffer: portsearch %d takes port %d out of range", settings.PortSearch, settings.Port))
	}
	if !(settings.Window > 0) || math.IsInf(settings.Window, 0) {
		errs = append(errs, fmt.Sprintf("buffer: window must be a positive number of seconds, got %g", settings.Window))
	}
	if settings.MaxEvents < 1 {
		errs = append(errs, fmt.Sprintf("buffer: maxevents must be at least 1, got %d", settings.MaxEvents))
	}
	if settings.MaxPayload < 1024 {
		errs = append(errs, fmt.Sprintf("buffer: maxpayload must be at least 1024 bytes, got %d", settings.MaxPayload))
	}
	if settings.ReadAhead < 64 {
		errs = append(errs, fmt.Sprintf("buffer: readahead must be at least 64 bytes, got %d", settings.ReadAhead))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// validateClientSettings validates the client command defaults
func validateClientSettings(settings *ClientSettings) error {
	var errs []string

	if settings.Host == "" {
		errs = append(errs, "client: host must not be empty")
	}
	if err := validatePort(settings.Port); err != nil {
		errs = append(errs, "client: "+err.Error())
	}
	if settings.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("client: timeout must not be negative, got %s", settings.Timeout))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// validateTelemetrySettings validates the Prometheus endpoint settings
func validateTelemetrySettings(settings *TelemetrySettings) error {
	if !settings.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		return fmt.Errorf("telemetry: listen address %q must be host:port", settings.Listen)
	}
	return nil
}

// validateSentrySettings validates the Sentry settings
func validateSentrySettings(settings *SentrySettings) error {
	if settings.Enabled && settings.DSN == "" {
		return errors.New("sentry: dsn is required when sentry is enabled")
	}
	return nil
}

// validateLoggingSettings validates the logging levels
func validateLoggingSettings(settings *Settings) error {
	check := func(name, level string) error {
		switch strings.ToLower(level) {
		case "", "trace", "debug", "info", "warn", "error":
			return nil
		}
		return fmt.Errorf("logging: %s level %q is not one of trace, debug, info, warn, error", name, level)
	}

	var errs []string
	if err := check("default", settings.Logging.DefaultLevel); err != nil {
		errs = append(errs, err.Error())
	}
	if c := settings.Logging.Console; c != nil {
		if err := check("console", c.Level); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if f := settings.Logging.FileOutput; f != nil {
		if err := check("file", f.Level); err != nil {
			errs = append(errs, err.Error())
		}
		if f.Enabled && f.Path == "" {
			errs = append(errs, "logging: file output path must not be empty")
		}
	}
	for module, level := range settings.Logging.ModuleLevels {
		if err := check("module "+module, level); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
