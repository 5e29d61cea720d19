package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// BufferMetrics contains all Prometheus metrics related to the buffer server.
type BufferMetrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ErrorsTotal      *prometheus.CounterVec
	PayloadBytes     *prometheus.HistogramVec
	Connections      prometheus.Gauge
	ConnectionsTotal prometheus.Counter
	PendingWaits     prometheus.Gauge
	Samples          prometheus.Gauge
	Events           prometheus.Gauge
	RetainedSamples  prometheus.Gauge
	registry         *prometheus.Registry
}

var _ BufferRecorder = (*BufferMetrics)(nil)

// NewBufferMetrics creates the buffer collectors and registers them with registry.
func NewBufferMetrics(registry *prometheus.Registry) (*BufferMetrics, error) {
	m := &BufferMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register buffer metrics: %w", err)
	}
	return m, nil
}

func (m *BufferMetrics) initMetrics() {
	m.RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ftbuffer_requests_total",
		Help: "Requests handled, by command and response status",
	}, []string{"command", "status"})

	m.RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ftbuffer_request_duration_seconds",
		Help:    "Time from request receipt to response, including deferred waits",
		Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount16),
	}, []string{"command"})

	m.ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ftbuffer_errors_total",
		Help: "Connection faults and rejected requests, by operation and error type",
	}, []string{"operation", "type"})

	m.PayloadBytes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ftbuffer_payload_bytes",
		Help:    "Request and response payload sizes in bytes",
		Buckets: prometheus.ExponentialBuckets(BucketStart64B, BucketFactor4, BucketCount12),
	}, []string{"direction"})

	m.Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ftbuffer_connections",
		Help: "Currently open client connections",
	})

	m.ConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ftbuffer_connections_total",
		Help: "Client connections accepted since start",
	})

	m.PendingWaits = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ftbuffer_pending_waits",
		Help: "WAIT_DAT requests waiting for samples, events or their timeout",
	})

	m.Samples = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ftbuffer_samples",
		Help: "Samples written under the current header",
	})

	m.Events = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ftbuffer_events",
		Help: "Events written under the current header",
	})

	m.RetainedSamples = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ftbuffer_retained_samples",
		Help: "Samples currently held in the ring buffer",
	})
}

// RecordOperation counts one handled request.
func (m *BufferMetrics) RecordOperation(operation, status string) {
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration observes the latency of one request.
func (m *BufferMetrics) RecordDuration(operation string, seconds float64) {
	m.RequestDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError counts one fault.
func (m *BufferMetrics) RecordError(operation, errorType string) {
	m.ErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// ConnectionOpened increments the live and total connection counts.
func (m *BufferMetrics) ConnectionOpened() {
	m.Connections.Inc()
	m.ConnectionsTotal.Inc()
}

// ConnectionClosed decrements the live connection count.
func (m *BufferMetrics) ConnectionClosed() {
	m.Connections.Dec()
}

// ObservePayload records a payload size.
func (m *BufferMetrics) ObservePayload(direction string, bytes int) {
	m.PayloadBytes.WithLabelValues(direction).Observe(float64(bytes))
}

// SetPendingWaits sets the pending wait gauge.
func (m *BufferMetrics) SetPendingWaits(n int) {
	m.PendingWaits.Set(float64(n))
}

// SetCounts sets the sample and event gauges.
func (m *BufferMetrics) SetCounts(nSamples, nEvents uint32, retainedSamples uint64) {
	m.Samples.Set(float64(nSamples))
	m.Events.Set(float64(nEvents))
	m.RetainedSamples.Set(float64(retainedSamples))
}

// Collect implements the prometheus.Collector interface.
func (m *BufferMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RequestsTotal.Collect(ch)
	m.RequestDuration.Collect(ch)
	m.ErrorsTotal.Collect(ch)
	m.PayloadBytes.Collect(ch)
	ch <- m.Connections
	ch <- m.ConnectionsTotal
	ch <- m.PendingWaits
	ch <- m.Samples
	ch <- m.Events
	ch <- m.RetainedSamples
}

// Describe implements the prometheus.Collector interface.
func (m *BufferMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RequestsTotal.Describe(ch)
	m.RequestDuration.Describe(ch)
	m.ErrorsTotal.Describe(ch)
	m.PayloadBytes.Describe(ch)
	ch <- m.Connections.Desc()
	ch <- m.ConnectionsTotal.Desc()
	ch <- m.PendingWaits.Desc()
	ch <- m.Samples.Desc()
	ch <- m.Events.Desc()
	ch <- m.RetainedSamples.Desc()
}
