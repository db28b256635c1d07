// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateLogTail(); err != nil {
		return err
	}
	if err := c.validateDashboard(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateAPI() error {
	if c.API.URL == "" {
		return fmt.Errorf("PANEL_API_URL is required")
	}
	if err := validateBaseURL(c.API.URL, "PANEL_API_URL"); err != nil {
		return err
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("PANEL_API_TIMEOUT must be positive, got: %v", c.API.Timeout)
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("PANEL_API_RATE_LIMIT must be >= 0, got: %v", c.API.RateLimit)
	}
	if c.API.RateLimit > 0 && c.API.RateBurst < 1 {
		return fmt.Errorf("PANEL_API_RATE_BURST must be at least 1 when rate limiting is enabled")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "memory":
		return nil
	case "badger":
		if c.Storage.Path == "" {
			return fmt.Errorf("TOKEN_STORE_PATH is required when TOKEN_STORE=badger")
		}
		return nil
	default:
		return fmt.Errorf("TOKEN_STORE must be one of: memory, badger (got: %q)", c.Storage.Backend)
	}
}

func (c *Config) validateLogTail() error {
	if !c.LogTail.Enabled {
		return nil
	}
	if c.LogTail.RetryCount < 0 {
		return fmt.Errorf("LOGTAIL_RETRY_COUNT must be >= 0, got: %d", c.LogTail.RetryCount)
	}
	if c.LogTail.RetryInterval < 100*time.Millisecond {
		return fmt.Errorf("LOGTAIL_RETRY_INTERVAL must be at least 100ms, got: %v", c.LogTail.RetryInterval)
	}
	if c.LogTail.BufferSize < 1 {
		return fmt.Errorf("LOGTAIL_BUFFER_SIZE must be at least 1, got: %d", c.LogTail.BufferSize)
	}
	return nil
}

func (c *Config) validateDashboard() error {
	if c.Dashboard.StatsRefreshSchedule != "" {
		if _, err := cron.ParseStandard(c.Dashboard.StatsRefreshSchedule); err != nil {
			return fmt.Errorf("STATS_REFRESH_SCHEDULE is invalid: %w", err)
		}
	}
	if c.Dashboard.PageSize < 1 || c.Dashboard.PageSize > 1000 {
		return fmt.Errorf("DASHBOARD_PAGE_SIZE must be between 1 and 1000, got: %d", c.Dashboard.PageSize)
	}
	if c.Dashboard.Breakpoint < 0 {
		return fmt.Errorf("DASHBOARD_BREAKPOINT must be >= 0, got: %d", c.Dashboard.Breakpoint)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.LoginRateLimit < 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT must be >= 0, got: %d", c.Server.LoginRateLimit)
	}
	if c.Server.SessionTTL < time.Minute {
		return fmt.Errorf("SESSION_TTL must be at least 1m, got: %v", c.Server.SessionTTL)
	}
	if c.Server.SessionCapacity < 1 {
		return fmt.Errorf("SESSION_CAPACITY must be at least 1, got: %d", c.Server.SessionCapacity)
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// validateBaseURL accepts http(s) URLs with a host and an optional path prefix.
// Query strings and fragments are rejected since request paths are appended.
func validateBaseURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}
	if parsedURL.Fragment != "" {
		return fmt.Errorf("%s should not contain a fragment", fieldName)
	}
	return nil
}
