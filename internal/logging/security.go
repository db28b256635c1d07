// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent is a session event written to the audit log.
type SecurityEvent struct {
	// Event is the kind of event ("login_success", "logout", "token_rejected").
	Event string
	// Actor is the session kind: "admin" or "client-portal".
	Actor string
	// Account is the admin username or the subscriber account number.
	Account string
	// IPAddress is the client address as seen by the router.
	IPAddress string
	Success   bool
	// Error is the panel's detail text for failures.
	Error   string
	Details map[string]string
}

// SecurityLogger writes session events with account names and secrets masked.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger on the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{
		logger: With().Str("component", "session").Logger(),
	}
}

// NewSecurityLoggerWithLogger creates a security logger with a custom zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// LogEvent logs a security event with automatic sanitization.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	e := l.logger.Info()
	if !event.Success {
		e = l.logger.Warn()
	}
	e = e.Str("event", event.Event)

	if event.Success {
		e = e.Str("status", "success")
	} else {
		e = e.Str("status", "failed")
	}

	if event.Actor != "" {
		e = e.Str("actor", event.Actor)
	}
	if event.Account != "" {
		e = e.Str("account", SanitizeAccount(event.Account))
	}
	if event.IPAddress != "" {
		e = e.Str("ip", event.IPAddress)
	}
	if event.Error != "" && !event.Success {
		e = e.Str("error", SanitizeError(event.Error))
	}
	for k, v := range event.Details {
		e = e.Str(k, SanitizeValue(k, v))
	}

	e.Msg("")
}

// LogLoginSuccess logs a successful login.
func (l *SecurityLogger) LogLoginSuccess(actor, account, ip string) {
	l.LogEvent(&SecurityEvent{
		Event:     "login_success",
		Actor:     actor,
		Account:   account,
		IPAddress: ip,
		Success:   true,
	})
}

// LogLoginFailure logs a rejected login with the panel's reason.
func (l *SecurityLogger) LogLoginFailure(actor, account, ip, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:     "login_failed",
		Actor:     actor,
		Account:   account,
		IPAddress: ip,
		Success:   false,
		Error:     reason,
	})
}

// LogLogout logs a logout.
func (l *SecurityLogger) LogLogout(actor, account, ip string) {
	l.LogEvent(&SecurityEvent{
		Event:     "logout",
		Actor:     actor,
		Account:   account,
		IPAddress: ip,
		Success:   true,
	})
}

// LogTokenRejected logs that the panel refused a stored token, which is then
// dropped.
func (l *SecurityLogger) LogTokenRejected(actor, token string) {
	l.LogEvent(&SecurityEvent{
		Event:   "token_rejected",
		Actor:   actor,
		Success: false,
		Error:   "stored token no longer accepted",
		Details: map[string]string{"token": token},
	})
}

// SanitizeToken masks a token, showing only first and last 4 characters.
// Example: "eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9..." -> "eyJh...kpXV"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeAccount masks an account name or number, keeping the first 2
// characters.
// Example: "abc123" -> "ab***"
func SanitizeAccount(account string) string {
	if account == "" {
		return ""
	}
	if len(account) <= 2 {
		return "***"
	}
	return account[:2] + "***"
}

// SanitizeError removes potentially sensitive information from error messages.
func SanitizeError(err string) string {
	sensitivePatterns := []string{
		"password",
		"secret",
		"bearer",
		"authorization",
		"cookie",
	}

	lowerErr := strings.ToLower(err)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerErr, pattern) {
			return "authentication error"
		}
	}

	return truncateString(err, 200)
}

// SanitizeValue sanitizes a value based on its key name.
func SanitizeValue(key, value string) string {
	switch strings.ToLower(key) {
	case "access_token", "token", "password", "authorization", "bearer", "cookie":
		return SanitizeToken(value)
	case "account", "account_number", "username":
		return SanitizeAccount(value)
	}
	return value
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
