package serve

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tphakala/ftbuffer/internal/buildinfo"
	"github.com/tphakala/ftbuffer/internal/conf"
)

func TestRunStopsOnCancel(t *testing.T) {
	settings := &conf.Settings{
		Buffer: conf.BufferSettings{Host: "127.0.0.1", Window: 1, KeepAlive: true},
		Telemetry: conf.TelemetrySettings{
			Enabled: true,
			Listen:  "127.0.0.1:0",
		},
	}

	ctx, cancel := context.WithCancel(t.Context())
	errc := make(chan error, 1)
	go func() { errc <- Run(ctx, settings, buildinfo.NewContext("test", "")) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunFailsOnInvalidTelemetryAddress(t *testing.T) {
	settings := &conf.Settings{
		Buffer:    conf.BufferSettings{Host: "127.0.0.1", Window: 1},
		Telemetry: conf.TelemetrySettings{Enabled: true, Listen: "256.0.0.1:1"},
	}

	err := Run(t.Context(), settings, buildinfo.NewContext("test", ""))
	require.Error(t, err)
}
