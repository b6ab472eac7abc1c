package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
downstream:
  url: https://chat-backend.test/converse
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8092, cfg.Server.Port)
	assert.Equal(t, "https://chat-backend.test/converse", cfg.Downstream.URL)
	assert.Equal(t, 30*time.Second, cfg.Downstream.Timeout)
}

func TestLoad_RequiresDownstreamURL(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "downstream.url is required")
}
