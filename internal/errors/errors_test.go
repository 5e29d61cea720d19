package errors

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

// recordingReporter captures reported errors for inspection
type recordingReporter struct {
	mu       sync.Mutex
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	if ee.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Error())
	}
	if ee.GetComponent() != ComponentUnknown {
		t.Errorf("Expected component 'unknown' in fast path, got '%s'", ee.GetComponent())
	}
	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic' in fast path, got '%s'", ee.Category)
	}
}

func TestBuilderContext(t *testing.T) {
	t.Parallel()

	ee := Newf("read failed on %s", "conn-1").
		Component("server").
		Category(CategoryNetwork).
		Priority("bogus").
		Context("operation", "read_request").
		NetworkContext("127.0.0.1:1972", 0).
		Build()

	if ee.GetComponent() != "server" {
		t.Errorf("Expected component 'server', got '%s'", ee.GetComponent())
	}
	if ee.GetPriority() != PriorityMedium {
		t.Errorf("Invalid priority should fall back to medium, got '%s'", ee.GetPriority())
	}

	ctx := ee.GetContext()
	if ctx["operation"] != "read_request" {
		t.Errorf("Expected operation context, got %v", ctx["operation"])
	}
	if ctx["address"] != "127.0.0.1:1972" {
		t.Errorf("Expected address context, got %v", ctx["address"])
	}

	// Returned context is a copy
	ctx["operation"] = "changed"
	if ee.GetContext()["operation"] != "read_request" {
		t.Error("GetContext must return a copy")
	}
}

func TestIsMatchesWrappedSentinel(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("not connected")
	ee := New(fmt.Errorf("get header: %w", sentinel)).Category(CategoryConnection).Build()

	if !Is(ee, sentinel) {
		t.Error("Expected enhanced error to match wrapped sentinel")
	}
	if !IsCategory(ee, CategoryConnection) {
		t.Error("Expected IsCategory to match connection category")
	}

	other := New(fmt.Errorf("other")).Category(CategoryConnection).Build()
	if Is(ee, other) {
		t.Error("Distinct enhanced errors with the same category must not match")
	}
}

func TestTelemetryReporterReceivesErrors(t *testing.T) {
	reporter := &recordingReporter{}
	SetTelemetryReporter(reporter)
	defer SetTelemetryReporter(nil)

	ee := Newf("connection reset by peer").Build()

	if len(reporter.reported) != 1 {
		t.Fatalf("Expected 1 reported error, got %d", len(reporter.reported))
	}
	if !ee.IsReported() {
		t.Error("Expected error to be marked as reported")
	}
	if ee.Category != CategoryNetwork {
		t.Errorf("Expected detected category 'network', got '%s'", ee.Category)
	}
}

func TestScrubMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message string
		leaked  string
	}{
		{"ipv4 with port", "read from 192.168.1.20:51234 failed", "192.168.1.20"},
		{"ipv6", "read from [::1]:1972 failed", "::1"},
		{"dsn", "init https://key@o1.ingest.sentry.io/42", "key@"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			scrubbed := scrubMessage(tt.message)
			if strings.Contains(scrubbed, tt.leaked) {
				t.Errorf("Sensitive data still present: %s", scrubbed)
			}
		})
	}
}

func TestGenerateErrorTitle(t *testing.T) {
	t.Parallel()

	ee := Newf("bad frame").
		Component("server").
		Category(CategoryProtocol).
		Context("operation", "read_request").
		Build()

	if got := generateErrorTitle(ee); got != "Server Protocol Error Read Request" {
		t.Errorf("Unexpected title: %s", got)
	}
}

func TestLookupComponentLongestMatch(t *testing.T) {
	RegisterComponent("example.test/widget", "widget")
	RegisterComponent("example.test/widget/gears", "gears")
	t.Cleanup(func() {
		registryMutex.Lock()
		delete(componentRegistry, "example.test/widget")
		delete(componentRegistry, "example.test/widget/gears")
		registryMutex.Unlock()
	})

	tests := []struct {
		funcName string
		want     string
	}{
		{"github.com/acme/example.test/widget.(*Spinner).Spin", "widget"},
		{"github.com/acme/example.test/widget/gears.Turn", "gears"},
		{"github.com/acme/other.Func", ComponentUnknown},
	}
	for _, tt := range tests {
		if got := lookupComponent(tt.funcName); got != tt.want {
			t.Errorf("lookupComponent(%q) = %q, want %q", tt.funcName, got, tt.want)
		}
	}
}
