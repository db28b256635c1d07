// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/bitly/go-simplejson"
)

// APIError is a non-2xx answer from the panel API.
type APIError struct {
	StatusCode int
	Method     string
	Path       string

	// Detail is the human readable "detail" of the response body, or the
	// status text when the body carries none.
	Detail string

	// Fields maps form field names to messages for 422 responses.
	Fields map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Detail)
}

// Unauthorized reports whether the token was rejected.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// TransportError means no usable response was received: connection failure,
// timeout, cancellation or an open circuit breaker.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen is wrapped in a TransportError when the breaker rejects a call.
var ErrCircuitOpen = errors.New("panel API temporarily unavailable")

// IsUnauthorized reports whether err is a 401/403 APIError.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}

// StatusCode returns the HTTP status of an APIError in err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// DetailOf returns the message to show a user for err.
func DetailOf(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		if errors.Is(transportErr.Err, ErrCircuitOpen) {
			return ErrCircuitOpen.Error()
		}
		return "Panel API unreachable"
	}
	return err.Error()
}

// FieldErrorsOf returns the per-field messages of a 422 APIError in err.
func FieldErrorsOf(err error) map[string]string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		return apiErr.Fields
	}
	return nil
}

// parseErrorBody extracts "detail" from a FastAPI style error body. detail may
// be a string, a field -> message object, or a list of {loc, msg} entries.
func parseErrorBody(status int, body []byte) (string, map[string]string) {
	fallback := http.StatusText(status)

	js, err := simplejson.NewJson(body)
	if err != nil {
		if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 {
			return text, nil
		}
		return fallback, nil
	}

	detail := js.Get("detail")
	if s, err := detail.String(); err == nil {
		return s, nil
	}

	if m, err := detail.Map(); err == nil {
		fields := make(map[string]string, len(m))
		for field, msg := range m {
			fields[field] = fmt.Sprint(msg)
		}
		return joinFieldMessages(fields, fallback), fields
	}

	if items, err := detail.Array(); err == nil {
		fields := make(map[string]string, len(items))
		for i := range items {
			entry := detail.GetIndex(i)
			msg := entry.Get("msg").MustString()
			loc := entry.Get("loc").MustArray()
			if len(loc) == 0 || msg == "" {
				continue
			}
			field := fmt.Sprint(loc[len(loc)-1])
			if _, exists := fields[field]; !exists {
				fields[field] = msg
			}
		}
		if len(fields) > 0 {
			return joinFieldMessages(fields, fallback), fields
		}
	}

	if msg, err := js.Get("message").String(); err == nil && msg != "" {
		return msg, nil
	}
	return fallback, nil
}

func joinFieldMessages(fields map[string]string, fallback string) string {
	if len(fields) == 0 {
		return fallback
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fields[k])
	}
	return strings.Join(parts, "; ")
}
