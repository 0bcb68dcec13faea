package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultArchiveBaseURL, cfg.ArchiveBaseURL)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 3, cfg.FetchRetries)
	assert.Equal(t, 2.0, cfg.RequestsPerSec)
	assert.Equal(t, 2, cfg.RequestBurst)
	assert.Equal(t, 4, cfg.DownloadWorkers)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("NEMWEB_ARCHIVE_URL", "http://mirror.example.com/MMSDM/")
	t.Setenv("NEMWEB_TIMEOUT", "30s")
	t.Setenv("NEMWEB_RETRIES", "5")
	t.Setenv("NEMWEB_RPS", "0.5")
	t.Setenv("NEMWEB_BURST", "1")
	t.Setenv("DOWNLOAD_WORKERS", "8")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("METRICS_ADDR", ":9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://mirror.example.com/MMSDM/", cfg.ArchiveBaseURL)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 5, cfg.FetchRetries)
	assert.Equal(t, 0.5, cfg.RequestsPerSec)
	assert.Equal(t, 1, cfg.RequestBurst)
	assert.Equal(t, 8, cfg.DownloadWorkers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}

func TestLoad_InvalidTimeout(t *testing.T) {
	t.Setenv("NEMWEB_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NEMWEB_TIMEOUT")
}

func TestLoad_NegativeTimeout(t *testing.T) {
	t.Setenv("NEMWEB_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NEMWEB_TIMEOUT")
}

func TestLoad_NegativeRetries(t *testing.T) {
	t.Setenv("NEMWEB_RETRIES", "-1")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NEMWEB_RETRIES")
}

func TestLoad_ZeroRequestRate(t *testing.T) {
	t.Setenv("NEMWEB_RPS", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NEMWEB_RPS")
}

func TestLoad_InvalidWorkerCount(t *testing.T) {
	t.Setenv("DOWNLOAD_WORKERS", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOWNLOAD_WORKERS")
}
