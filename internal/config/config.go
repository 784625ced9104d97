// Package config defines process configuration and its loading.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config contains process configuration for both the client commands and the
// mock event service.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr is the listen address of the mock event service.
	Addr string `koanf:"addr"`

	// RemoteURL is the base URL of the remote event service.
	RemoteURL string `koanf:"remote_url"`

	// RequestTimeout bounds each remote request.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// CacheDir holds the local cache files.
	CacheDir string `koanf:"cache_dir"`

	// Google OAuth client. Without a client id the authorization URL endpoint
	// answers 500.
	GoogleClientID     string `koanf:"google_client_id"`
	GoogleClientSecret string `koanf:"google_client_secret"`
	GoogleRedirectURL  string `koanf:"google_redirect_url"`

	// RateLimitRPS and RateLimitBurst configure per-client limiting on the
	// service. Zero RPS disables it.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// SeedFixtures preloads the service with the demo meeting.
	SeedFixtures bool `koanf:"seed_fixtures"`

	// StartConnected makes the service accept event requests from the start.
	StartConnected bool `koanf:"start_connected"`

	// HistogramBuckets overrides the latency buckets, in seconds. Empty keeps
	// the Prometheus defaults.
	HistogramBuckets []float64 `koanf:"histogram_buckets"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		Addr:           ":3000",
		RemoteURL:      "http://localhost:3000",
		RequestTimeout: 10 * time.Second,
		CacheDir:       defaultCacheDir(),
		RateLimitRPS:   0,
		RateLimitBurst: 20,
		SeedFixtures:   true,
		StartConnected: true,
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "calstore")
	}
	return ".calstore"
}
