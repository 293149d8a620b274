package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DRuggeri/cellwatch/config"
	"github.com/DRuggeri/cellwatch/permissions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, config.ScannerModem, cfg.Scanner.Mode)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cellwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: 127.0.0.1:9000
scan-interval: 10s
permissions:
  mode: static
  grant-all: true
scanner:
  mode: fixture
  fixture: /tmp/scan.yaml
watch-paths:
  - /dev/ttyUSB2
`), 0o600))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, 10*time.Second, cfg.ScanInterval)
	assert.Equal(t, time.Minute, cfg.ResumeInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Permissions.GrantAll)
	assert.Equal(t, config.PermissionsStatic, cfg.Permissions.Mode)
	assert.Equal(t, "/dev/ttyUSB2", cfg.Permissions.Devices[permissions.PhoneState])
	assert.Equal(t, "/tmp/scan.yaml", cfg.Scanner.Fixture)
	assert.Equal(t, uint(115200), cfg.Scanner.Baud)
	assert.Equal(t, []string{"/dev/ttyUSB2"}, cfg.WatchPaths)
}

func TestLoadErrorsReturnDefaults(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, ":8080", cfg.Listen)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [\n"), 0o600))
	cfg, err = config.LoadConfig(path)
	assert.Error(t, err)
	assert.NotNil(t, cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty listen", func(c *config.Config) { c.Listen = "" }},
		{"log level", func(c *config.Config) { c.LogLevel = "chatty" }},
		{"resume interval", func(c *config.Config) { c.ResumeInterval = 0 }},
		{"scan interval", func(c *config.Config) { c.ScanInterval = -time.Second }},
		{"permissions mode", func(c *config.Config) { c.Permissions.Mode = "ask" }},
		{"grants file", func(c *config.Config) { c.Permissions.GrantsFile = "" }},
		{"device permission", func(c *config.Config) {
			c.Permissions.Devices = map[permissions.Permission]string{"camera": "/dev/video0"}
		}},
		{"scanner mode", func(c *config.Config) { c.Scanner.Mode = "radio" }},
		{"scanner port", func(c *config.Config) { c.Scanner.Port = "" }},
		{"scanner timeout", func(c *config.Config) { c.Scanner.Timeout = 0 }},
		{"fixture", func(c *config.Config) { c.Scanner.Mode = config.ScannerFixture }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
