// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/proxypanel/internal/httpclient"
	"github.com/tomtom215/proxypanel/internal/logging"
	"github.com/tomtom215/proxypanel/internal/session"
	"github.com/tomtom215/proxypanel/internal/tokenstore"
)

// AdminAPI is everything the admin stores need from the panel.
type AdminAPI interface {
	AdminSessionAPI
	UsersAPI
	NodesAPI
	CoreAPI
	CertificatesAPI
}

// Connect builds the panel API of one actor kind. tokens yields the token of
// the browser session carried by the request context and onUnauthorized must
// run after the panel rejected it.
type Connect[API any] func(tokens httpclient.TokenSource, onUnauthorized func(ctx context.Context)) API

// AdminStores is the store set of one admin browser session.
type AdminStores struct {
	Session      *Session
	Dashboard    *Dashboard
	Nodes        *Nodes
	Core         *Core
	Certificates *Certificates

	tokens *tokenstore.TokenStorage
}

// AdminSessionsConfig configures NewAdminSessions.
type AdminSessionsConfig struct {
	Registry  session.RegistryConfig
	Backend   tokenstore.Backend
	Logs      *LogBuffer
	Dashboard DashboardOptions
}

// AdminSessions is the registry of admin store sets, one per browser. Tokens
// and preferences of a session are kept on the backend under its id, so a
// session survives a restart when the backend is durable.
type AdminSessions struct {
	*session.Registry[*AdminStores]
}

// NewAdminSessions creates the registry. All sessions share one panel API
// built by connect.
func NewAdminSessions(cfg AdminSessionsConfig, connect Connect[AdminAPI]) (*AdminSessions, error) {
	if cfg.Backend == nil {
		cfg.Backend = tokenstore.NewMemoryBackend()
	}
	if cfg.Logs == nil {
		cfg.Logs = NewLogBuffer(0)
	}

	s := &AdminSessions{}
	api := connect(httpclient.TokenFunc(s.token), s.handleUnauthorized)

	reg, err := session.NewRegistry(cfg.Registry, func(id string) (*AdminStores, error) {
		scoped := tokenstore.Scoped(cfg.Backend, id)
		tokens := tokenstore.Admin(scoped)
		dashboard, err := NewDashboard(api, tokenstore.NewPreferences(scoped), cfg.Dashboard)
		if err != nil {
			return nil, err
		}
		return &AdminStores{
			Session:      NewSession(api, tokens),
			Dashboard:    dashboard,
			Nodes:        NewNodes(api),
			Core:         NewCore(api, cfg.Logs),
			Certificates: NewCertificates(api),
			tokens:       tokens,
		}, nil
	}, func(id string, st *AdminStores) {
		dropToken(id, st.tokens)
	})
	if err != nil {
		return nil, fmt.Errorf("create admin sessions: %w", err)
	}
	s.Registry = reg
	return s, nil
}

func (s *AdminSessions) token(ctx context.Context) string {
	st, ok := s.Lookup(session.IDFromContext(ctx))
	if !ok {
		return ""
	}
	return st.tokens.Token(ctx)
}

func (s *AdminSessions) handleUnauthorized(ctx context.Context) {
	if st, ok := s.Lookup(session.IDFromContext(ctx)); ok {
		st.Session.HandleUnauthorized(ctx)
	}
}

// EachSignedIn calls fn for every session holding a token, with ctx bound to
// that session, until fn returns false.
func (s *AdminSessions) EachSignedIn(ctx context.Context, fn func(ctx context.Context, st *AdminStores) bool) {
	s.Range(func(id string, st *AdminStores) bool {
		if st.tokens.Token(ctx) == "" {
			return true
		}
		return fn(session.WithID(ctx, id), st)
	})
}

// AnyToken returns the token of some signed-in session, or "".
func (s *AdminSessions) AnyToken(ctx context.Context) string {
	token := ""
	s.EachSignedIn(ctx, func(ctx context.Context, st *AdminStores) bool {
		token = st.tokens.Token(ctx)
		return false
	})
	return token
}

// PortalSessions is the registry of client portal stores, one per browser.
type PortalSessions struct {
	*session.Registry[*Portal]
}

// PortalSessionsConfig configures NewPortalSessions.
type PortalSessionsConfig struct {
	Registry session.RegistryConfig
	Backend  tokenstore.Backend
}

// NewPortalSessions creates the registry. All sessions share one panel API
// built by connect.
func NewPortalSessions(cfg PortalSessionsConfig, connect Connect[PortalAPI]) (*PortalSessions, error) {
	if cfg.Backend == nil {
		cfg.Backend = tokenstore.NewMemoryBackend()
	}

	s := &PortalSessions{}
	api := connect(httpclient.TokenFunc(s.token), s.handleUnauthorized)

	reg, err := session.NewRegistry(cfg.Registry, func(id string) (*Portal, error) {
		return NewPortal(api, tokenstore.ClientPortal(tokenstore.Scoped(cfg.Backend, id))), nil
	}, func(id string, p *Portal) {
		dropToken(id, p.tokens)
	})
	if err != nil {
		return nil, fmt.Errorf("create portal sessions: %w", err)
	}
	s.Registry = reg
	return s, nil
}

func (s *PortalSessions) token(ctx context.Context) string {
	p, ok := s.Lookup(session.IDFromContext(ctx))
	if !ok {
		return ""
	}
	tok, err := p.tokens.Get(ctx)
	if err != nil {
		return ""
	}
	return tok
}

func (s *PortalSessions) handleUnauthorized(ctx context.Context) {
	if p, ok := s.Lookup(session.IDFromContext(ctx)); ok {
		p.HandleUnauthorized(ctx)
	}
}

// dropToken removes the token of a session that ended.
func dropToken(id string, tokens TokenStore) {
	if err := tokens.Remove(context.Background()); err != nil && !errors.Is(err, tokenstore.ErrTokenNotFound) {
		logging.Warn().Err(err).Str("session", logging.SanitizeToken(id)).Msg("Failed to remove token of ended session")
	}
}
