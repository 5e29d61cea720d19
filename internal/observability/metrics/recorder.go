// Package metrics provides the Prometheus collectors for the buffer server.
package metrics

// Recorder defines a minimal interface for recording metrics.
// Components depend on this abstraction rather than on concrete collectors.
type Recorder interface {
	// RecordOperation records a generic operation with its status.
	// The operation parameter names what was performed (e.g., "PUT_DAT").
	// The status parameter is the outcome (e.g., "PUT_OK", "PUT_ERR").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its type.
	// The errorType parameter categorizes the error (e.g., "version", "oversize").
	RecordError(operation, errorType string)
}

// BufferRecorder extends Recorder with the gauges a buffer server maintains.
type BufferRecorder interface {
	Recorder

	// ConnectionOpened and ConnectionClosed track live client connections.
	ConnectionOpened()
	ConnectionClosed()

	// ObservePayload records a request or response payload size.
	// direction is DirectionIn or DirectionOut.
	ObservePayload(direction string, bytes int)

	// SetPendingWaits reports the number of deferred WAIT_DAT requests.
	SetPendingWaits(n int)

	// SetCounts reports the header counters and the retained sample count.
	SetCounts(nSamples, nEvents uint32, retainedSamples uint64)
}

// NoOpRecorder is a no-op implementation of BufferRecorder.
// It can be used when metrics recording is not needed.
type NoOpRecorder struct{}

// RecordOperation does nothing.
func (n *NoOpRecorder) RecordOperation(operation, status string) {}

// RecordDuration does nothing.
func (n *NoOpRecorder) RecordDuration(operation string, seconds float64) {}

// RecordError does nothing.
func (n *NoOpRecorder) RecordError(operation, errorType string) {}

// ConnectionOpened does nothing.
func (n *NoOpRecorder) ConnectionOpened() {}

// ConnectionClosed does nothing.
func (n *NoOpRecorder) ConnectionClosed() {}

// ObservePayload does nothing.
func (n *NoOpRecorder) ObservePayload(direction string, bytes int) {}

// SetPendingWaits does nothing.
func (n *NoOpRecorder) SetPendingWaits(count int) {}

// SetCounts does nothing.
func (n *NoOpRecorder) SetCounts(nSamples, nEvents uint32, retainedSamples uint64) {}

// NewNoOpRecorder creates a new no-op recorder instance.
func NewNoOpRecorder() *NoOpRecorder {
	return &NoOpRecorder{}
}
