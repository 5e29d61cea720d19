// Package buildinfo holds build-time metadata kept out of user configuration.
package buildinfo

import "github.com/google/uuid"

// UnknownValue is reported for metadata that was not set at build time.
const UnknownValue = "unknown"

// Context is the build version and date plus a per-process instance ID used
// to tell server runs apart in logs and telemetry.
type Context struct {
	version    string
	buildDate  string
	instanceID string
}

// NewContext returns build metadata with a fresh instance ID.
func NewContext(version, buildDate string) *Context {
	return &Context{
		version:    version,
		buildDate:  buildDate,
		instanceID: uuid.New().String(),
	}
}

// Version returns the release version.
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns the build timestamp.
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// InstanceID identifies this process.
func (c *Context) InstanceID() string {
	if c == nil || c.instanceID == "" {
		return UnknownValue
	}
	return c.instanceID
}
