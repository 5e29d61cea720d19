package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/ftbuffer/internal/conf"
)

func TestConfigPrintsYAML(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{Buffer: conf.BufferSettings{Port: 2000, Window: 30}}

	var out bytes.Buffer
	cmd := Command(settings)
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	var got conf.Settings
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 2000, got.Buffer.Port)
	assert.InDelta(t, 30.0, got.Buffer.Window, 0)
}

func TestConfigInitWritesOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	var out bytes.Buffer
	cmd := Command(&conf.Settings{})
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"init", path})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "buffer:")

	cmd = Command(&conf.Settings{})
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"init", path})
	assert.Error(t, cmd.Execute(), "existing config is not overwritten")
}
