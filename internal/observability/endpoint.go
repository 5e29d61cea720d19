// Package observability provides Prometheus metrics functionality for monitoring the buffer server.
// Sentry error telemetry is handled by the errors package.
package observability

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tphakala/ftbuffer/internal/conf"
	"github.com/tphakala/ftbuffer/internal/errors"
	"github.com/tphakala/ftbuffer/internal/logger"
	metricspkg "github.com/tphakala/ftbuffer/internal/observability/metrics"
)

const readHeaderTimeout = 10 * time.Second

// Endpoint handles all operations related to Prometheus-compatible telemetry.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	listener      net.Listener
	metrics       *Metrics
}

// NewEndpoint creates a new instance of telemetry Endpoint.
//
// It returns an error if telemetry is not enabled in the settings. The
// endpoint does not create metrics; it serves the provided Metrics instance.
func NewEndpoint(settings *conf.Settings, metrics *Metrics) (*Endpoint, error) {
	if !settings.Telemetry.Enabled {
		return nil, errors.Newf("telemetry not enabled in settings").
			Component("observability").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return &Endpoint{
		listenAddress: settings.Telemetry.Listen,
		metrics:       metrics,
	}, nil
}

// Start binds the listen address and serves /metrics until quitChan closes.
//
// The listener is bound before Start returns so that address errors surface
// to the caller. Serving and graceful shutdown run on wg.
func (e *Endpoint) Start(wg *sync.WaitGroup, quitChan <-chan struct{}) error {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)

	ln, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return errors.New(err).
			Component("observability").
			Category(errors.CategoryNetwork).
			Context("listen", e.listenAddress).
			Build()
	}
	e.listener = ln

	e.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	log := GetLogger()
	wg.Go(func() {
		log.Info("Telemetry endpoint starting", logger.String("address", ln.Addr().String()))
		if err := e.server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			log.Error("Telemetry HTTP server error", logger.Error(err))
		}
	})

	wg.Go(func() { e.gracefulShutdown(quitChan) })
	return nil
}

// gracefulShutdown waits for the quit signal and shuts down the server gracefully.
func (e *Endpoint) gracefulShutdown(quitChan <-chan struct{}) {
	<-quitChan
	log := GetLogger()
	log.Info("Stopping telemetry server")
	ctx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		log.Error("Telemetry server shutdown error", logger.Error(err))
	}
}

// Addr returns the bound address once Start has succeeded.
func (e *Endpoint) Addr() net.Addr {
	if e.listener == nil {
		return nil
	}
	return e.listener.Addr()
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}
