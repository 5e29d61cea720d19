// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/ftbuffer/internal/logger"
	"github.com/tphakala/ftbuffer/pkg/fieldtrip"
)

// Default values shared by the server and client commands
const (
	DefaultHost       = "localhost"
	DefaultPort       = 1972
	DefaultWindow     = 600.0 // seconds
	DefaultMaxEvents  = 1024
	DefaultMaxPayload = fieldtrip.DefaultMaxPayload
	DefaultReadAhead  = 64 << 10
	DefaultTimeout    = 5 * time.Second
	DefaultListen     = "0.0.0.0:8090"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("buffer.host", DefaultHost)
	viper.SetDefault("buffer.port", DefaultPort)
	viper.SetDefault("buffer.portsearch", 0)
	viper.SetDefault("buffer.window", DefaultWindow)
	viper.SetDefault("buffer.maxevents", DefaultMaxEvents)
	viper.SetDefault("buffer.maxpayload", DefaultMaxPayload)
	viper.SetDefault("buffer.readahead", DefaultReadAhead)
	viper.SetDefault("buffer.keepalive", true)

	viper.SetDefault("client.host", DefaultHost)
	viper.SetDefault("client.port", DefaultPort)
	viper.SetDefault("client.timeout", DefaultTimeout)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", DefaultListen)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")

	viper.SetDefault("logging.default_level", logger.DefaultLogLevel)
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	viper.SetDefault("logging.console.level", logger.DefaultLogLevel)
	viper.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	viper.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	viper.SetDefault("logging.file_output.level", logger.DefaultLogLevel)
}
