// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "FTBUFFER_DEBUG", validateEnvBool},

		// Server
		{"buffer.host", "FTBUFFER_HOST", nil},
		{"buffer.port", "FTBUFFER_PORT", validateEnvPort},
		{"buffer.portsearch", "FTBUFFER_PORTSEARCH", validateEnvNonNegative},
		{"buffer.window", "FTBUFFER_WINDOW", validateEnvWindow},
		{"buffer.maxevents", "FTBUFFER_MAXEVENTS", validateEnvPositive},
		{"buffer.keepalive", "FTBUFFER_KEEPALIVE", validateEnvBool},

		// Client tools
		{"client.host", "FTBUFFER_CLIENT_HOST", nil},
		{"client.port", "FTBUFFER_CLIENT_PORT", validateEnvPort},

		// Observability
		{"telemetry.enabled", "FTBUFFER_TELEMETRY_ENABLED", validateEnvBool},
		{"telemetry.listen", "FTBUFFER_TELEMETRY_LISTEN", validateEnvListen},
		{"sentry.enabled", "FTBUFFER_SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", "FTBUFFER_SENTRY_DSN", nil},
		{"logging.default_level", "FTBUFFER_LOG_LEVEL", validateEnvLogLevel},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvNonNegative(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("must not be negative, got %d", n)
	}
	return nil
}

func validateEnvPositive(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1, got %d", n)
	}
	return nil
}

func validateEnvWindow(value string) error {
	w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid window: %w", err)
	}
	if w <= 0 {
		return fmt.Errorf("window must be positive, got %g", w)
	}
	return nil
}

func validateEnvListen(value string) error {
	if _, _, err := net.SplitHostPort(value); err != nil {
		return fmt.Errorf("listen address must be host:port: %w", err)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "trace", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("log level must be one of trace, debug, info, warn, error")
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars()
}
