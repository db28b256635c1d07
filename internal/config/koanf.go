// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, first match wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/proxypanel/config.yaml",
	"/etc/proxypanel/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			URL:            "",
			Timeout:        30 * time.Second,
			BreakerEnabled: true,
			RateLimit:      0,
			RateBurst:      10,
		},
		Storage: StorageConfig{
			Backend: "badger",
			Path:    "/data/proxypanel/tokens",
		},
		Portal: PortalConfig{
			Enabled: true,
		},
		LogTail: LogTailConfig{
			Enabled:       true,
			RetryCount:    5,
			RetryInterval: 3 * time.Second,
			BufferSize:    500,
		},
		Dashboard: DashboardConfig{
			StatsRefreshSchedule: "@every 30s",
			PageSize:             10,
			Breakpoint:           768,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			CORSOrigins:     []string{},
			LoginRateLimit:  10,
			ShutdownTimeout: 10 * time.Second,
			SessionTTL:      24 * time.Hour,
			SessionCapacity: 10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration in three layers:
//
//  1. Defaults from defaultConfig
//  2. Optional YAML config file
//  3. Environment variables
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// PANEL_API_URL -> api.url, HTTP_PORT -> server.port
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ConfigFile returns the config file Load reads, or "" when there is none.
func ConfigFile() string {
	return findConfigFile()
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"panel_api_url":             "api.url",
	"panel_api_timeout":         "api.timeout",
	"panel_api_breaker_enabled": "api.breaker_enabled",
	"panel_api_rate_limit":      "api.rate_limit",
	"panel_api_rate_burst":      "api.rate_burst",

	"token_store":      "storage.backend",
	"token_store_path": "storage.path",

	"portal_enabled": "portal.enabled",

	"logtail_enabled":        "logtail.enabled",
	"logtail_retry_count":    "logtail.retry_count",
	"logtail_retry_interval": "logtail.retry_interval",
	"logtail_buffer_size":    "logtail.buffer_size",

	"stats_refresh_schedule": "dashboard.stats_refresh_schedule",
	"dashboard_page_size":    "dashboard.page_size",
	"dashboard_breakpoint":   "dashboard.breakpoint",

	"http_host":        "server.host",
	"http_port":        "server.port",
	"cors_origins":     "server.cors_origins",
	"login_rate_limit": "server.login_rate_limit",
	"shutdown_timeout": "server.shutdown_timeout",
	"session_ttl":      "server.session_ttl",
	"session_capacity": "server.session_capacity",
	"secure_cookies":   "server.secure_cookies",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped variables return "" and are ignored.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile calls callback whenever the file at path changes. The caller
// owns any locking around the reloaded configuration.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
