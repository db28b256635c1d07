// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

// Package config loads ProxyPanel configuration from built-in defaults, an
// optional YAML file and environment variables, in that order of precedence.
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load configuration")
//	}
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	API       APIConfig       `koanf:"api"`
	Storage   StorageConfig   `koanf:"storage"`
	Portal    PortalConfig    `koanf:"portal"`
	LogTail   LogTailConfig   `koanf:"logtail"`
	Dashboard DashboardConfig `koanf:"dashboard"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// APIConfig configures the connection to the panel API.
type APIConfig struct {
	// URL is the base URL every request path is appended to, for example
	// https://panel.example.com/api
	URL string `koanf:"url"`

	// Timeout bounds a single request, including reading the body.
	// Default: 30s
	Timeout time.Duration `koanf:"timeout"`

	// BreakerEnabled wraps requests in a circuit breaker that opens after
	// consecutive 5xx or transport failures.
	// Default: true
	BreakerEnabled bool `koanf:"breaker_enabled"`

	// RateLimit paces outgoing requests (requests per second). 0 disables pacing.
	RateLimit float64 `koanf:"rate_limit"`

	// RateBurst is the token bucket size used with RateLimit.
	// Default: 10
	RateBurst int `koanf:"rate_burst"`
}

// StorageConfig selects where session tokens and preferences are kept.
type StorageConfig struct {
	// Backend is memory or badger.
	// Default: badger
	Backend string `koanf:"backend"`

	// Path is the badger data directory.
	// Default: /data/proxypanel/tokens
	Path string `koanf:"path"`
}

// PortalConfig toggles the end-user client portal.
type PortalConfig struct {
	Enabled bool `koanf:"enabled"`
}

// LogTailConfig configures the live core log WebSocket client.
type LogTailConfig struct {
	Enabled bool `koanf:"enabled"`

	// RetryCount is how many reconnect attempts are made before giving up.
	// Default: 5
	RetryCount int `koanf:"retry_count"`

	// RetryInterval is the fixed pause between reconnect attempts.
	// Default: 3s
	RetryInterval time.Duration `koanf:"retry_interval"`

	// BufferSize is the number of log lines kept by the core store.
	// Default: 500
	BufferSize int `koanf:"buffer_size"`
}

// DashboardConfig holds admin dashboard behaviour.
type DashboardConfig struct {
	// StatsRefreshSchedule is a cron expression for the background statistics
	// refresh. Empty disables it.
	// Default: @every 30s
	StatsRefreshSchedule string `koanf:"stats_refresh_schedule"`

	// PageSize is the users page size used until an items-per-page preference
	// has been saved.
	// Default: 10
	PageSize int `koanf:"page_size"`

	// Breakpoint is the viewport width (px) below which tables render compact rows.
	// Default: 768
	Breakpoint int `koanf:"breakpoint"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// CORSOrigins is a comma separated list in env form.
	CORSOrigins []string `koanf:"cors_origins"`

	// LoginRateLimit caps login attempts per client IP per minute. 0 disables it.
	// Default: 10
	LoginRateLimit int `koanf:"login_rate_limit"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// SessionTTL is how long an idle browser session keeps its stores and
	// token.
	// Default: 24h
	SessionTTL time.Duration `koanf:"session_ttl"`

	// SessionCapacity caps the live browser sessions per actor kind.
	// Default: 10000
	SessionCapacity int `koanf:"session_capacity"`

	// SecureCookies marks the session and CSRF cookies Secure even on plain
	// HTTP, for a TLS terminating proxy in front.
	SecureCookies bool `koanf:"secure_cookies"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// Load reads configuration using the layered koanf loader.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
