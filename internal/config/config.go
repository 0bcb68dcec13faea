package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all tool settings, populated from environment variables.
// Query parameters (windows, tables, cache paths) arrive as CLI flags; the
// environment covers transport tuning and observability.
type Config struct {
	ArchiveBaseURL string
	HTTPTimeout    time.Duration
	FetchRetries   int
	RequestsPerSec float64
	RequestBurst   int

	DownloadWorkers int

	LogLevel  string
	LogFormat string

	// MetricsAddr enables the health/metrics listener when non-empty.
	MetricsAddr string
}

// DefaultArchiveBaseURL is the NEMWeb wholesale electricity data archive.
const DefaultArchiveBaseURL = "http://www.nemweb.com.au/Data_Archive/Wholesale_Electricity/MMSDM/"

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	httpTimeout, err := parseDuration("NEMWEB_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	retries, err := parseInt("NEMWEB_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	rps, err := parseFloat("NEMWEB_RPS", 2.0)
	if err != nil {
		return nil, err
	}
	burst, err := parseInt("NEMWEB_BURST", 2)
	if err != nil {
		return nil, err
	}
	workers, err := parseInt("DOWNLOAD_WORKERS", 4)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ArchiveBaseURL:  envOrDefault("NEMWEB_ARCHIVE_URL", DefaultArchiveBaseURL),
		HTTPTimeout:     httpTimeout,
		FetchRetries:    retries,
		RequestsPerSec:  rps,
		RequestBurst:    burst,
		DownloadWorkers: workers,
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "text"),
		MetricsAddr:     os.Getenv("METRICS_ADDR"),
	}

	if cfg.ArchiveBaseURL == "" {
		return nil, errors.New("NEMWEB_ARCHIVE_URL must not be empty")
	}
	if cfg.FetchRetries < 0 {
		return nil, errors.New("NEMWEB_RETRIES must be >= 0")
	}
	if cfg.RequestsPerSec <= 0 {
		return nil, errors.New("NEMWEB_RPS must be > 0")
	}
	if cfg.DownloadWorkers < 1 {
		return nil, errors.New("DOWNLOAD_WORKERS must be >= 1")
	}
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	v := envOrDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}
