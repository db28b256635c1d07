// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

// Package logging provides the zerolog-based structured logging used across
// ProxyPanel.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("actor", "admin").Msg("Login successful")
//	logging.Error().Err(err).Int("status", 502).Msg("Panel API request failed")
//
// # Configuration
//
// Environment Variables (read through internal/config):
//
//	LOG_LEVEL   - trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - json, console (default: json)
//	LOG_CALLER  - include caller file:line (default: false)
//
// SetLevelString changes the level at runtime; the config file watcher uses
// it so LOG_LEVEL edits apply without a restart.
//
// # Context-Aware Logging
//
// The router stores the request id, the client address and the acting
// session kind in the request context. Ctx adds them to every event:
//
//	logging.Ctx(ctx).Debug().Str("path", path).Msg("Panel API request")
//
// # Component Loggers
//
//	tailLog := logging.WithComponent("logtail")
//	tailLog.Info().Msg("Connected")
//
// # Session Audit Log
//
// SecurityLogger records logins, logouts and rejected tokens. Account names
// are masked to their first two characters and tokens to their first and
// last four.
//
// # slog Adapter
//
// NewSlogLogger returns an slog.Logger writing through zerolog, used for the
// suture supervisor event hook.
//
// # Testing
//
//	var buf bytes.Buffer
//	logger := logging.NewTestLogger(&buf)
//	logger.Info().Msg("test message")
package logging
