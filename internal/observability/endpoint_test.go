package observability

import (
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/ftbuffer/internal/conf"
)

func TestNewEndpointRequiresTelemetry(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	_, err = NewEndpoint(&conf.Settings{}, m)
	assert.Error(t, err)
}

func TestNewMetricsIndependentRegistries(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			m, err := NewMetrics()
			if assert.NoError(t, err) {
				assert.NotNil(t, m.Buffer)
				assert.NotNil(t, m.Registry())
			}
		})
	}
	wg.Wait()
}

func TestEndpointServesMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.Buffer.SetPendingWaits(2)

	settings := &conf.Settings{Telemetry: conf.TelemetrySettings{Enabled: true, Listen: "127.0.0.1:0"}}
	e, err := NewEndpoint(settings, m)
	require.NoError(t, err)
	assert.Same(t, m, e.GetMetrics())

	var wg sync.WaitGroup
	quit := make(chan struct{})
	require.NoError(t, e.Start(&wg, quit))
	defer func() {
		close(quit)
		wg.Wait()
	}()

	resp, err := http.Get("http://" + e.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ftbuffer_pending_waits 2")
	assert.Contains(t, string(body), "go_goroutines")
}
