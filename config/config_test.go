package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10.0, cfg.Server.RateLimitPerSec)
	assert.Equal(t, 5, cfg.Server.RateLimitBurst)
	assert.Equal(t, "file:smart-lighting.db", cfg.Database.DSN)

	assert.Equal(t, "stub", cfg.Detection.Backend)
	assert.Equal(t, 4*time.Second, cfg.Detection.LiveTimeout)
	assert.Equal(t, 15*time.Second, cfg.Detection.UploadTimeout)
	assert.Equal(t, 5*time.Second, cfg.Detection.StopGrace)
	assert.Equal(t, 3, cfg.Detection.IntervalSeconds)
	assert.Equal(t, 75.0, cfg.Detection.ConfidenceThreshold)

	assert.Equal(t, 3600, cfg.Push.TTL)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
}

func TestLoad_ClampsDetectionSettings(t *testing.T) {
	path := writeConfig(t, `
detection:
  backend: http
  backend_url: http://localhost:9001/detect
  interval_seconds: 42
  confidence_threshold: 20
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.Detection.Backend)
	assert.Equal(t, "http://localhost:9001/detect", cfg.Detection.BackendURL)
	assert.Equal(t, 10, cfg.Detection.IntervalSeconds, "interval is clamped to the supported range")
	assert.Equal(t, 50.0, cfg.Detection.ConfidenceThreshold, "threshold is clamped to the supported range")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestClampHelpers(t *testing.T) {
	assert.Equal(t, 1, ClampInterval(-3))
	assert.Equal(t, 5, ClampInterval(5))
	assert.Equal(t, 10, ClampInterval(60))

	assert.Equal(t, 50.0, ClampConfidence(0))
	assert.Equal(t, 80.0, ClampConfidence(80))
	assert.Equal(t, 95.0, ClampConfidence(100))
}
