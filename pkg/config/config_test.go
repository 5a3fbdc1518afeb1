package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "telescoped.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, validate(Default()))
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[data]
root = "/srv/telescopes"

[scheduler]
tick_interval_ms = 20

[mqtt]
enabled = true
host = "broker.lan"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/telescopes", cfg.Data.Root)
	assert.Equal(t, Default().Data.ServerDir, cfg.Data.ServerDir)
	assert.Equal(t, 20, cfg.Scheduler.TickIntervalMS)
	assert.Equal(t, 10000, cfg.Scheduler.ConnectTimeoutMS)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "broker.lan", cfg.MQTT.Host)
	assert.Equal(t, 1883, cfg.MQTT.Port)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "Invalid TOML", content: "[data\nroot = 1"},
		{name: "Empty data root", content: "[data]\nroot = \"\""},
		{name: "Unknown log level", content: "[logging]\nlevel = \"chatty\""},
		{name: "Port out of range", content: "[server]\nport = 70000"},
		{name: "Zero tick", content: "[scheduler]\ntick_interval_ms = 0"},
		{name: "MQTT without topic", content: "[mqtt]\nenabled = true\ntopic_root = \"\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, Default(), cfg)
}
