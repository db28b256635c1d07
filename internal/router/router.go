// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

// Package router maps HTTP routes onto store mutators and views.
//
// Every browser has its own stores, found through the session cookie of the
// admin dashboard or of the client portal. Sign-in issues a fresh cookie and
// sign-out drops the stores. All POST routes require the CSRF token that the
// rendered forms carry.
//
// Protected route groups run a loader that verifies the stored token
// of their session store. When that fails the group answers with the
// sign-in page and 401 instead of redirecting. Mutating routes are POST only
// and answer 303 back to the page they came from, so the page is re-rendered
// from the store snapshot including any dialog errors.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/proxypanel/internal/middleware"
	"github.com/tomtom215/proxypanel/internal/session"
	"github.com/tomtom215/proxypanel/internal/store"
	"github.com/tomtom215/proxypanel/internal/views"
)

// Stores resolves the stores of a browser session. Portal is nil when the
// client portal is disabled.
type Stores struct {
	Admin  *store.AdminSessions
	Portal *store.PortalSessions
}

// Config configures the router.
type Config struct {
	// Breakpoint is the viewport width below which tables render compact rows.
	Breakpoint int

	// Middleware configures CORS and the sign-in rate limit.
	Middleware *middleware.ChiConfig

	// SlowRequest is the access log warn threshold.
	SlowRequest time.Duration

	// SessionTTL is the lifetime of the session and CSRF cookies.
	// Default: session.DefaultTTL
	SessionTTL time.Duration

	// SecureCookies sets the Secure flag on every cookie, for deployments
	// behind a TLS terminating proxy.
	SecureCookies bool

	// Now is the clock used for relative dates. Default: time.Now
	Now func() time.Time
}

// Router serves the admin dashboard and the client portal.
type Router struct {
	cfg          Config
	stores       Stores
	views        *views.Engine
	chi          *middleware.Chi
	csrf         *middleware.CSRF
	adminCookie  session.Cookie
	portalCookie session.Cookie
}

// New builds a router over stores.
func New(cfg Config, stores Stores, engine *views.Engine) *Router {
	if cfg.Breakpoint <= 0 {
		cfg.Breakpoint = views.DefaultBreakpoint
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = session.DefaultTTL
	}
	rt := &Router{
		cfg:    cfg,
		stores: stores,
		views:  engine,
		chi:    middleware.NewChi(cfg.Middleware),
		adminCookie: session.Cookie{
			Name:   session.AdminCookieName,
			MaxAge: cfg.SessionTTL,
			Secure: cfg.SecureCookies,
		},
		portalCookie: session.Cookie{
			Name:   session.PortalCookieName,
			Path:   portalBack,
			MaxAge: cfg.SessionTTL,
			Secure: cfg.SecureCookies,
		},
	}
	rt.csrf = middleware.NewCSRF(&middleware.CSRFConfig{
		CookieSecure: cfg.SecureCookies,
		TokenTTL:     cfg.SessionTTL,
		ErrorHandler: rt.csrfFailed,
	})
	return rt
}

// Handler configures all HTTP routes.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog(rt.cfg.SlowRequest))
	r.Use(chimiddleware.Compress(5))
	r.Use(rt.chi.CORS())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Browser pages: CSRF token on every form, per-browser stores
	r.Group(func(r chi.Router) {
		r.Use(rt.csrf.Protect)
		r.Use(rt.adminCookie.Load)

		r.Get("/login", rt.loginPage)
		r.With(rt.chi.LoginRateLimit("admin_login")).Post("/login", rt.login)
		r.Post("/logout", rt.logout)

		// Admin dashboard
		r.Group(func(r chi.Router) {
			r.Use(rt.adminLoader(rt.adminLoginRequired))
			rt.dashboardRoutes(r)
			r.Route("/nodes", rt.nodesRoutes)
			r.Route("/core", rt.coreRoutes)
			r.Route("/certificates", rt.certificatesRoutes)
		})

		// JSON snapshots for scripts and polling
		r.Route("/api/state", func(r chi.Router) {
			r.Use(rt.adminLoader(rt.apiLoginRequired))
			r.Get("/dashboard", rt.dashboardState)
			r.Get("/nodes", rt.nodesState)
			r.Get("/core", rt.coreState)
			r.Get("/certificates", rt.certificatesState)
		})
	})

	if rt.stores.Portal != nil {
		r.Route("/portal", func(r chi.Router) {
			r.Use(rt.csrf.Protect)
			r.Use(rt.portalCookie.Load)
			rt.portalRoutes(r)
		})
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.renderError(w, r, http.StatusNotFound, "Page not found", "/")
	})
	return r
}
