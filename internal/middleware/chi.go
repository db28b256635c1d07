// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/proxypanel/internal/metrics"
)

// ChiConfig holds configuration for the chi middleware factories.
type ChiConfig struct {
	// CORS configuration
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int // seconds

	// Login rate limiting. LoginRateLimit is requests per LoginRateWindow per
	// client IP; 0 disables the limiter.
	LoginRateLimit  int
	LoginRateWindow time.Duration
	OnLoginLimited  http.HandlerFunc
}

// DefaultChiConfig returns a secure default configuration.
// CORS origins default to empty, requiring explicit configuration.
func DefaultChiConfig() *ChiConfig {
	return &ChiConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "X-Request-ID", "X-CSRF-Token"},
		CORSMaxAge:         86400,

		LoginRateLimit:  10,
		LoginRateWindow: time.Minute,
	}
}

// Chi provides chi-compatible middleware built from the go-chi ecosystem.
type Chi struct {
	config *ChiConfig
	cors   func(http.Handler) http.Handler
}

// NewChi creates the middleware factory. A nil config uses DefaultChiConfig.
func NewChi(config *ChiConfig) *Chi {
	if config == nil {
		config = DefaultChiConfig()
	}
	return &Chi{
		config: config,
		cors: cors.Handler(cors.Options{
			AllowedOrigins: config.CORSAllowedOrigins,
			AllowedMethods: config.CORSAllowedMethods,
			AllowedHeaders: config.CORSAllowedHeaders,
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         config.CORSMaxAge,
		}),
	}
}

// CORS returns the go-chi/cors handler.
func (m *Chi) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// LoginRateLimit limits sign-in attempts per client IP. Rejections are
// counted under the given limiter name.
func (m *Chi) LoginRateLimit(name string) func(http.Handler) http.Handler {
	if m.config.LoginRateLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	window := m.config.LoginRateWindow
	if window <= 0 {
		window = time.Minute
	}
	onLimit := m.config.OnLoginLimited
	if onLimit == nil {
		onLimit = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Too many sign-in attempts, try again later", http.StatusTooManyRequests)
		}
	}

	return httprate.Limit(
		m.config.LoginRateLimit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.HTTPRateLimited.WithLabelValues(name).Inc()
			onLimit(w, r)
		}),
	)
}
