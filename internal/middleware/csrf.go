// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/proxypanel/internal/logging"
)

// CSRF protection errors
var (
	// ErrCSRFTokenMissing indicates no CSRF token was provided.
	ErrCSRFTokenMissing = errors.New("CSRF token missing")

	// ErrCSRFTokenInvalid indicates the submitted token does not match the cookie.
	ErrCSRFTokenInvalid = errors.New("CSRF token invalid")
)

// CSRFConfig holds configuration for CSRF protection middleware.
type CSRFConfig struct {
	// CookieName is the name of the CSRF cookie (default: "_csrf").
	CookieName string

	// HeaderName is the HTTP header name for CSRF token (default: "X-CSRF-Token").
	HeaderName string

	// FormFieldName is the form field name for CSRF token (default: "csrf_token").
	FormFieldName string

	// CookieSecure forces the Secure flag. TLS requests always get it.
	CookieSecure bool

	// TokenLength is the byte length of the CSRF token (default: 32).
	TokenLength int

	// TokenTTL is the cookie lifetime (default: 24h).
	TokenTTL time.Duration

	// ErrorHandler is called when CSRF validation fails.
	// If nil, answers 403 with a plain text body.
	ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)
}

// DefaultCSRFConfig returns the defaults for CSRF protection.
func DefaultCSRFConfig() *CSRFConfig {
	return &CSRFConfig{
		CookieName:    "_csrf",
		HeaderName:    "X-CSRF-Token",
		FormFieldName: "csrf_token",
		TokenLength:   32,
		TokenTTL:      24 * time.Hour,
	}
}

// CSRF protects POST forms with the double-submit cookie pattern: the token
// lives in a cookie and every unsafe request must echo it in a header or form
// field. Pages read the current token with CSRFToken to embed it in forms.
type CSRF struct {
	config *CSRFConfig
}

// NewCSRF creates the middleware. A nil config uses DefaultCSRFConfig.
func NewCSRF(config *CSRFConfig) *CSRF {
	defaults := DefaultCSRFConfig()
	if config == nil {
		config = defaults
	}
	if config.CookieName == "" {
		config.CookieName = defaults.CookieName
	}
	if config.HeaderName == "" {
		config.HeaderName = defaults.HeaderName
	}
	if config.FormFieldName == "" {
		config.FormFieldName = defaults.FormFieldName
	}
	if config.TokenLength <= 0 {
		config.TokenLength = defaults.TokenLength
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = defaults.TokenTTL
	}
	return &CSRF{config: config}
}

type csrfKey struct{}

// CSRFToken returns the token of the current request, or "".
func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfKey{}).(string)
	return token
}

// Protect sets the CSRF cookie on safe requests and validates the token on
// all others.
func (m *CSRF) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) {
			token := m.ensureToken(w, r)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfKey{}, token)))
			return
		}

		token, err := m.validateToken(r)
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("CSRF validation failed")
			m.handleError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfKey{}, token)))
	})
}

func isSafeMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// ensureToken returns the cookie token, issuing a new one when there is none.
func (m *CSRF) ensureToken(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(m.config.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	token, err := m.generateToken()
	if err != nil {
		logging.Error().Err(err).Msg("CSRF: failed to generate token")
		return ""
	}
	m.setTokenCookie(w, r, token)
	return token
}

func (m *CSRF) validateToken(r *http.Request) (string, error) {
	cookie, err := r.Cookie(m.config.CookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrCSRFTokenMissing
	}

	requestToken := r.Header.Get(m.config.HeaderName)
	if requestToken == "" {
		requestToken = r.PostFormValue(m.config.FormFieldName)
	}
	if requestToken == "" {
		return "", ErrCSRFTokenMissing
	}

	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(requestToken)) != 1 {
		return "", ErrCSRFTokenInvalid
	}
	return cookie.Value, nil
}

func (m *CSRF) generateToken() (string, error) {
	buf := make([]byte, m.config.TokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (m *CSRF) setTokenCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.config.TokenTTL.Seconds()),
		Secure:   m.config.CookieSecure || r.TLS != nil,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *CSRF) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if m.config.ErrorHandler != nil {
		m.config.ErrorHandler(w, r, err)
		return
	}
	http.Error(w, err.Error(), http.StatusForbidden)
}
