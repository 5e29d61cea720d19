// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Payload direction label values.
const (
	// DirectionIn labels request payloads received from clients.
	DirectionIn = "in"
	// DirectionOut labels response payloads sent to clients.
	DirectionOut = "out"
)

// Error type label values for connection faults.
const (
	// ErrorVersion is a message header with a foreign protocol version.
	ErrorVersion = "version"
	// ErrorOversize is a payload larger than the configured limit.
	ErrorOversize = "oversize"
	// ErrorTruncated is a connection that closed mid-message.
	ErrorTruncated = "truncated"
	// ErrorIO is any other transport failure.
	ErrorIO = "io"
)

// OpConnection is the operation label for connection-level faults.
const OpConnection = "connection"

// Histogram bucket configuration constants.
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketStart64B is the starting bucket for 64 byte histograms.
	BucketStart64B = 64.0
	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketFactor4 grows byte buckets fast enough to reach multi-megabyte payloads.
	BucketFactor4 = 4
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
	// BucketCount16 defines 16 exponential buckets.
	BucketCount16 = 16
)

// ShutdownTimeout is the timeout for graceful shutdown operations.
const ShutdownTimeout = 5 * time.Second
