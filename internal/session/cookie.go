// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Cookie names of the two actor kinds.
const (
	AdminCookieName  = "proxypanel_session"
	PortalCookieName = "proxypanel_portal"
)

// Cookie reads and issues the session id cookie of one actor kind.
type Cookie struct {
	// Name of the cookie.
	Name string

	// Path scopes the cookie (default: "/").
	Path string

	// MaxAge is the cookie lifetime (default: DefaultTTL).
	MaxAge time.Duration

	// Secure forces the Secure flag. TLS requests always get it.
	Secure bool
}

type idKey struct{}

// WithID returns ctx carrying the session id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey{}, id)
}

// IDFromContext returns the session id of the request, or "".
func IDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(idKey{}).(string)
	return id
}

// Load puts the id of a well-formed session cookie into the request context.
// Requests without one carry no id; only Issue creates sessions.
func (c Cookie) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := c.read(r); id != "" {
			r = r.WithContext(WithID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (c Cookie) read(r *http.Request) string {
	cookie, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return ""
	}
	return id.String()
}

// Issue starts a new session: a fresh id is set as the cookie and carried by
// the returned request. The previous id, if any, is returned so the caller
// can drop it.
func (c Cookie) Issue(w http.ResponseWriter, r *http.Request) (next *http.Request, previous string) {
	previous = IDFromContext(r.Context())
	id := uuid.New().String()

	maxAge := c.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultTTL
	}
	http.SetCookie(w, c.cookie(r, id, int(maxAge.Seconds())))
	return r.WithContext(WithID(r.Context(), id)), previous
}

// Clear expires the cookie.
func (c Cookie) Clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, c.cookie(r, "", -1))
}

func (c Cookie) cookie(r *http.Request, value string, maxAge int) *http.Cookie {
	path := c.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		Secure:   c.Secure || r.TLS != nil,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
