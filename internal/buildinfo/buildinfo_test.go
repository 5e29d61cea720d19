package buildinfo

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextAccessors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ctx       *Context
		version   string
		buildDate string
	}{
		{"nil context", nil, UnknownValue, UnknownValue},
		{"empty fields", NewContext("", ""), UnknownValue, UnknownValue},
		{"release", NewContext("1.2.0", "2026-10-01T12:00:00Z"), "1.2.0", "2026-10-01T12:00:00Z"},
		{"pre-release", NewContext("1.3.0-rc.1", ""), "1.3.0-rc.1", UnknownValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.version, tt.ctx.Version())
			assert.Equal(t, tt.buildDate, tt.ctx.BuildDate())
		})
	}
}

func TestInstanceID(t *testing.T) {
	t.Parallel()

	var nilCtx *Context
	assert.Equal(t, UnknownValue, nilCtx.InstanceID())

	a, b := NewContext("1.0.0", ""), NewContext("1.0.0", "")
	_, err := uuid.Parse(a.InstanceID())
	require.NoError(t, err)
	assert.NotEqual(t, a.InstanceID(), b.InstanceID())
}
