// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package models

import (
	"time"
)

// APIResponse is the envelope every dashboard and portal endpoint answers with.
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"rows": [...], "compact": false},
//	  "metadata": {"timestamp": "2026-03-01T12:00:00Z"}
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "VALIDATION_ERROR",
//	    "message": "data_limit must be at least 0",
//	    "details": {"fields": {"data_limit": "data_limit must be at least 0"}}
//	  },
//	  "metadata": {"timestamp": "2026-03-01T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata is attached to every response.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError carries a machine-readable code, the message shown to the user and
// optional details such as per-field messages.
//
// Codes in use:
//   - VALIDATION_ERROR: form input rejected locally or by the panel (422)
//   - PANEL_ERROR: the panel API answered with a non-2xx status
//   - UNAVAILABLE: transport failure or open circuit breaker
//   - AUTHENTICATION_ERROR: missing or rejected token
//   - NOT_FOUND: unknown route or entity
//   - CONFLICT: the requested action does not match current dialog state
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// TokenResponse is the OAuth2 password grant response returned by both login endpoints.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Admin is the response of the current admin lookup.
type Admin struct {
	Username string `json:"username"`
	IsSudo   bool   `json:"is_sudo"`
}
