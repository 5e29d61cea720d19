// config.go: settings struct for the buffer server and client tools, and the
// functions to load it from defaults, config.yaml and the environment.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/ftbuffer/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// BufferSettings controls the buffer server.
type BufferSettings struct {
	Host       string  `yaml:"host"`       // listen host
	Port       int     `yaml:"port"`       // listen port, 1972 by convention
	PortSearch int     `yaml:"portsearch"` // extra consecutive ports to try when Port is busy
	Window     float64 `yaml:"window"`     // seconds of samples retained in the ring buffer
	MaxEvents  int     `yaml:"maxevents"`  // events retained before the oldest is evicted
	MaxPayload uint32  `yaml:"maxpayload"` // largest request payload accepted, in bytes
	ReadAhead  int     `yaml:"readahead"`  // per-connection read-ahead buffer, in bytes
	KeepAlive  bool    `yaml:"keepalive"`  // keep serving after a connection faults
}

// ClientSettings holds defaults for the client subcommands.
type ClientSettings struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"` // dial and per-request I/O timeout
}

// TelemetrySettings controls the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // host:port of the /metrics endpoint
}

// SentrySettings controls optional error reporting.
type SentrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// Settings is the root of the configuration tree.
type Settings struct {
	Debug     bool                 `yaml:"debug"`
	Buffer    BufferSettings       `yaml:"buffer"`
	Client    ClientSettings       `yaml:"client"`
	Telemetry TelemetrySettings    `yaml:"telemetry"`
	Sentry    SentrySettings       `yaml:"sentry"`
	Logging   logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads defaults, the config file if one exists and environment
// variables into a validated Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper registers defaults, config search paths and environment bindings,
// then reads config.yaml. A missing config file is not an error.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		GetLogger().Warn("Environment variable configuration issues", logger.Error(err))
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			GetLogger().Debug("No config file found, using defaults")
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	GetLogger().Debug("Loaded config file", logger.String("path", viper.ConfigFileUsed()))
	return nil
}

// DefaultConfig returns the embedded, commented default config.yaml.
func DefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config: %w", err)
	}
	return data, nil
}

// GetSettings returns the settings from the last successful Load
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
