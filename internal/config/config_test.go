package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 5069, cfg.App.Port)
	assert.Equal(t, "smarthub.db", cfg.Database.URL)
	assert.Equal(t, "hub", cfg.Notifications.DefaultNotifier)
	assert.Equal(t, "log", cfg.Notifications.DefaultOutlet)
	assert.False(t, cfg.Notifications.Queue)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SMARTHUB_APP_PORT", "8088")
	t.Setenv("SMARTHUB_MQTT_BROKER", "tcp://broker:1883")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.App.Port)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.yaml")
	content := `
database:
  url: postgres://hub@localhost/hub
notifications:
  queue: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://hub@localhost/hub", cfg.Database.URL)
	assert.True(t, cfg.Notifications.Queue)
	assert.Equal(t, 5069, cfg.App.Port)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
