package conf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// isolate points config discovery at an empty temporary directory tree and
// resets viper's global state.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	viper.Reset()
	t.Cleanup(viper.Reset)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, settings.Buffer.Host)
	assert.Equal(t, DefaultPort, settings.Buffer.Port)
	assert.InDelta(t, DefaultWindow, settings.Buffer.Window, 0)
	assert.Equal(t, DefaultMaxEvents, settings.Buffer.MaxEvents)
	assert.Equal(t, uint32(DefaultMaxPayload), settings.Buffer.MaxPayload)
	assert.True(t, settings.Buffer.KeepAlive)
	assert.Equal(t, DefaultTimeout, settings.Client.Timeout)
	assert.False(t, settings.Telemetry.Enabled)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
	assert.Same(t, settings, GetSettings())
}

func TestLoadConfigFileAndEnvironment(t *testing.T) {
	dir := isolate(t)

	configYAML := []byte(`
buffer:
  port: 2000
  window: 30
  keepalive: false
client:
  timeout: 250ms
logging:
  module_levels:
    server: debug
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), configYAML, 0o600))
	t.Setenv("FTBUFFER_MAXEVENTS", "16")
	t.Setenv("FTBUFFER_PORT", "2001")

	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2001, settings.Buffer.Port, "environment overrides file")
	assert.InDelta(t, 30.0, settings.Buffer.Window, 0)
	assert.False(t, settings.Buffer.KeepAlive)
	assert.Equal(t, 16, settings.Buffer.MaxEvents)
	assert.Equal(t, 250*time.Millisecond, settings.Client.Timeout)
	assert.Equal(t, map[string]string{"server": "debug"}, settings.Logging.ModuleLevels)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	dir := isolate(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("buffer:\n  window: -1\n  maxevents: 0\n"), 0o600))

	_, err := Load()
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 1, "buffer problems are reported as one entry")
	assert.Contains(t, ve.Errors[0], "window")
	assert.Contains(t, ve.Errors[0], "maxevents")
}

func validSettings() *Settings {
	return &Settings{
		Buffer: BufferSettings{
			Host: DefaultHost, Port: DefaultPort, Window: DefaultWindow,
			MaxEvents: DefaultMaxEvents, MaxPayload: DefaultMaxPayload, ReadAhead: DefaultReadAhead,
		},
		Client:    ClientSettings{Host: DefaultHost, Port: DefaultPort, Timeout: DefaultTimeout},
		Telemetry: TelemetrySettings{Listen: DefaultListen},
	}
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"valid", func(*Settings) {}, ""},
		{"port zero", func(s *Settings) { s.Buffer.Port = 0 }, "port must be between"},
		{"port search overflow", func(s *Settings) { s.Buffer.Port = 65530; s.Buffer.PortSearch = 10 }, "portsearch"},
		{"tiny readahead", func(s *Settings) { s.Buffer.ReadAhead = 8 }, "readahead"},
		{"client host", func(s *Settings) { s.Client.Host = "" }, "client: host"},
		{"telemetry listen", func(s *Settings) { s.Telemetry.Enabled = true; s.Telemetry.Listen = "8090" }, "telemetry"},
		{"sentry without dsn", func(s *Settings) { s.Sentry.Enabled = true }, "dsn is required"},
		{"bad module level", func(s *Settings) { s.Logging.ModuleLevels = map[string]string{"server": "loud"} }, "module server"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateEnvFunctions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fn      func(string) error
		value   string
		wantErr bool
	}{
		{"bool true", validateEnvBool, " true ", false},
		{"bool yes", validateEnvBool, "yes", true},
		{"port ok", validateEnvPort, "1972", false},
		{"port too big", validateEnvPort, "70000", true},
		{"port text", validateEnvPort, "http", true},
		{"window ok", validateEnvWindow, "2.5", false},
		{"window zero", validateEnvWindow, "0", true},
		{"positive zero", validateEnvPositive, "0", true},
		{"non-negative zero", validateEnvNonNegative, "0", false},
		{"listen ok", validateEnvListen, ":9090", false},
		{"listen bad", validateEnvListen, "9090", true},
		{"level ok", validateEnvLogLevel, "DEBUG", false},
		{"level bad", validateEnvLogLevel, "verbose", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.fn(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	t.Parallel()

	in := validSettings()
	in.Buffer.PortSearch = 3
	in.Client.Timeout = 1500 * time.Millisecond

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, in))
	assert.Contains(t, buf.String(), "portsearch: 3")
	assert.Contains(t, buf.String(), "timeout: 1.5s")

	var out Settings
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, in.Buffer, out.Buffer)
}

func TestDefaultConfigMatchesDefaults(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "etc", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))
	require.Error(t, WriteDefaultConfig(path), "existing file must not be overwritten")

	data, err := DefaultConfig()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0o600))

	settings, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", filepath.Base(viper.ConfigFileUsed()))

	viper.Reset()
	require.NoError(t, os.Remove(filepath.Join(dir, "config.yaml")))
	defaults, err := Load()
	require.NoError(t, err)

	assert.Equal(t, defaults.Buffer, settings.Buffer)
	assert.Equal(t, defaults.Client, settings.Client)
	assert.Equal(t, defaults.Telemetry, settings.Telemetry)
}
