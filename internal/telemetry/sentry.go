// Package telemetry wires optional Sentry error reporting. It is opt-in: nothing
// is sent unless sentry.enabled is set together with a DSN.
package telemetry

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/ftbuffer/internal/buildinfo"
	"github.com/tphakala/ftbuffer/internal/conf"
	"github.com/tphakala/ftbuffer/internal/errors"
	"github.com/tphakala/ftbuffer/internal/logger"
)

// allowedExtra are the only event extras kept by the privacy filter.
var allowedExtra = map[string]bool{
	"component": true,
	"category":  true,
	"operation": true,
}

var initialized atomic.Bool

// InitSentry initializes the Sentry SDK and routes enhanced errors to it.
// It returns false without error when reporting is disabled.
func InitSentry(settings *conf.Settings, build *buildinfo.Context) (bool, error) {
	log := GetLogger()
	if !settings.Sentry.Enabled {
		log.Debug("Sentry telemetry is disabled (opt-in required)")
		return false, nil
	}
	if settings.Sentry.DSN == "" {
		return false, errors.Newf("sentry enabled without a dsn").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",
		Release:          fmt.Sprintf("ftbuffer@%s", build.Version()),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return false, fmt.Errorf("sentry initialization failed: %w", err)
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetTag("instance_id", build.InstanceID())
		scope.SetContext("application", map[string]any{
			"name":    "ftbuffer",
			"version": build.Version(),
		})
	})

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	initialized.Store(true)

	log.Info("Sentry telemetry initialized", logger.String("release", build.Version()))
	return true, nil
}

// applyPrivacyFilters strips host and user identifying data from an event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	for _, key := range []string{"device", "os", "runtime"} {
		delete(event.Contexts, key)
	}
	for k := range event.Extra {
		if !allowedExtra[k] {
			delete(event.Extra, k)
		}
	}
	delete(event.Tags, "server_name")
	delete(event.Tags, "hostname")

	return event
}

// Flush waits up to timeout for queued events. It is a no-op when Sentry was
// never initialized.
func Flush(timeout time.Duration) {
	if !initialized.Load() {
		return
	}
	sentry.Flush(timeout)
}
