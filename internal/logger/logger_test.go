package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/ftbuffer/internal/logger"
)

func TestSlogLoggerFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelDebug, time.UTC).Module("server")

	log.Info("Header stored",
		logger.Uint32("channels", 8),
		logger.Float64("fsample", 250.12345),
		logger.Duration("elapsed", 1500*time.Millisecond),
		logger.Error(errors.New("boom")),
		logger.Bool("replaced", true))

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, `msg="Header stored"`)
	assert.Contains(t, out, "module=server")
	assert.Contains(t, out, "channels=8")
	assert.Contains(t, out, "fsample=250.123")
	assert.Contains(t, out, "elapsed=1.5s")
	assert.Contains(t, out, "error=boom")
	assert.NotContains(t, out, "time=", "console output omits timestamps")
}

func TestSlogLoggerLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		level   logger.LogLevel
		emit    func(logger.Logger)
		visible bool
	}{
		{"debug hidden at info", logger.LogLevelInfo, func(l logger.Logger) { l.Debug("x") }, false},
		{"info visible at info", logger.LogLevelInfo, func(l logger.Logger) { l.Info("x") }, true},
		{"trace visible at trace", logger.LogLevelTrace, func(l logger.Logger) { l.Trace("x") }, true},
		{"warn hidden at error", logger.LogLevelError, func(l logger.Logger) { l.Warn("x") }, false},
		{"error always visible", logger.LogLevelError, func(l logger.Logger) { l.Error("x") }, true},
		{"explicit log honours level", logger.LogLevelWarn, func(l logger.Logger) { l.Log(logger.LogLevelDebug, "x") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			tt.emit(logger.NewSlogLogger(&buf, tt.level, nil))
			assert.Equal(t, tt.visible, buf.Len() > 0)
		})
	}
}

func TestTraceLevelName(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger.NewSlogLogger(&buf, logger.LogLevelTrace, nil).Trace("frame read")
	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestWithAndModuleNesting(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := logger.NewSlogLogger(&buf, logger.LogLevelInfo, nil).Module("server")
	connLog := base.With(logger.String("conn_id", "abcd1234")).Module("conn")

	connLog.Info("closed")
	base.Info("listening")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "module=server.conn")
	assert.Contains(t, lines[0], "conn_id=abcd1234")
	assert.NotContains(t, lines[1], "conn_id", "With must not leak into the parent")
}

func TestWithContextTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelInfo, nil)

	log.WithContext(logger.WithTraceID(context.Background(), "req-42")).Info("traced")
	log.WithContext(context.Background()).Info("untraced")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "trace_id=req-42")
	assert.NotContains(t, lines[1], "trace_id")
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "logs", "ftbuffer.log")
	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "info",
		Timezone:     "UTC",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput:   &logger.FileOutput{Enabled: true, Path: logPath, Level: "debug"},
		ModuleLevels: map[string]string{"server": "debug"},
	})
	require.NoError(t, err)

	cl.Module("server").Debug("wait registered", logger.Uint32("samples", 100))
	cl.Module("client").Debug("suppressed")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(logPath) //nolint:gosec // test file path from t.TempDir()
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, "server", record["module"])
	assert.Equal(t, "wait registered", record["msg"])
	assert.InDelta(t, 100, record["samples"], 0)

	_, err = time.Parse(time.RFC3339, record["time"].(string))
	assert.NoError(t, err)
}

func TestCentralLoggerRejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := logger.NewCentralLogger(nil)
	require.Error(t, err)

	_, err = logger.NewCentralLogger(&logger.LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

func TestGlobalFallback(t *testing.T) {
	t.Parallel()

	log := logger.Global().Module("test")
	require.NotNil(t, log)
	assert.NoError(t, log.Flush())
}
