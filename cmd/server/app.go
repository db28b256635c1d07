// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/proxypanel/internal/config"
	"github.com/tomtom215/proxypanel/internal/httpclient"
	"github.com/tomtom215/proxypanel/internal/logtail"
	"github.com/tomtom215/proxypanel/internal/middleware"
	"github.com/tomtom215/proxypanel/internal/panel"
	"github.com/tomtom215/proxypanel/internal/router"
	"github.com/tomtom215/proxypanel/internal/session"
	"github.com/tomtom215/proxypanel/internal/store"
	"github.com/tomtom215/proxypanel/internal/tokenstore"
	"github.com/tomtom215/proxypanel/internal/views"
)

// app is the wired process: per-browser stores over panel clients, the router
// and the log tail.
type app struct {
	admins  *store.AdminSessions
	portals *store.PortalSessions
	logs    *store.LogBuffer
	router  *router.Router
	tailer  *logtail.Tailer
}

func clientConfig(cfg *config.Config, actor string) httpclient.Config {
	return httpclient.Config{
		BaseURL:        cfg.API.URL,
		Timeout:        cfg.API.Timeout,
		Actor:          actor,
		BreakerEnabled: cfg.API.BreakerEnabled,
		RateLimit:      cfg.API.RateLimit,
		RateBurst:      cfg.API.RateBurst,
	}
}

func newApp(cfg *config.Config, backend tokenstore.Backend) (*app, error) {
	a := &app{logs: store.NewLogBuffer(cfg.LogTail.BufferSize)}
	sessions := session.RegistryConfig{
		Capacity: cfg.Server.SessionCapacity,
		TTL:      cfg.Server.SessionTTL,
	}

	admins, err := store.NewAdminSessions(store.AdminSessionsConfig{
		Registry:  sessions,
		Backend:   backend,
		Logs:      a.logs,
		Dashboard: store.DashboardOptions{PageSize: cfg.Dashboard.PageSize},
	}, func(tokens httpclient.TokenSource, onUnauthorized func(ctx context.Context)) store.AdminAPI {
		return panel.NewAdmin(httpclient.New(clientConfig(cfg, tokenstore.ActorAdmin), tokens,
			httpclient.WithUnauthorizedHandler(onUnauthorized)))
	})
	if err != nil {
		return nil, err
	}
	a.admins = admins

	if cfg.Portal.Enabled {
		portals, err := store.NewPortalSessions(store.PortalSessionsConfig{
			Registry: sessions,
			Backend:  backend,
		}, func(tokens httpclient.TokenSource, onUnauthorized func(ctx context.Context)) store.PortalAPI {
			return panel.NewPortal(httpclient.New(clientConfig(cfg, tokenstore.ActorClient), tokens,
				httpclient.WithUnauthorizedHandler(onUnauthorized)))
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.portals = portals
	}

	engine, err := views.NewEngine()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	mw := middleware.DefaultChiConfig()
	mw.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mw.LoginRateLimit = cfg.Server.LoginRateLimit
	a.router = router.New(router.Config{
		Breakpoint:    cfg.Dashboard.Breakpoint,
		Middleware:    mw,
		SessionTTL:    cfg.Server.SessionTTL,
		SecureCookies: cfg.Server.SecureCookies,
	}, router.Stores{Admin: a.admins, Portal: a.portals}, engine)

	a.tailer = logtail.New(logtail.Config{
		BaseURL:       cfg.API.URL,
		Resolve:       a.resolveLogStream,
		RetryCount:    cfg.LogTail.RetryCount,
		RetryInterval: cfg.LogTail.RetryInterval,
	}, a.logs, httpclient.TokenFunc(a.admins.AnyToken))

	return a, nil
}

// Close stops the session registries.
func (a *app) Close() {
	if a.admins != nil {
		a.admins.Close()
	}
	if a.portals != nil {
		a.portals.Close()
	}
}

// resolveLogStream refreshes the core info through a signed-in admin session
// and returns its log stream path. Without one there is nothing to tail yet.
func (a *app) resolveLogStream(ctx context.Context) (string, error) {
	var (
		path  string
		err   error
		found bool
	)
	a.admins.EachSignedIn(ctx, func(ctx context.Context, st *store.AdminStores) bool {
		found = true
		if err = st.Core.FetchInfo(ctx); err == nil {
			path = st.Core.LogsWebsocket()
		}
		return false
	})
	if !found {
		return "", nil
	}
	return path, err
}

// refreshStatistics is the scheduled statistics refresh of every signed-in
// admin session. Sessions without a token are skipped.
func (a *app) refreshStatistics(ctx context.Context) error {
	var errs []error
	a.admins.EachSignedIn(ctx, func(ctx context.Context, st *store.AdminStores) bool {
		if err := st.Dashboard.FetchStatistics(ctx); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	return errors.Join(errs...)
}
