// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package router

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/proxypanel/internal/logging"
	"github.com/tomtom215/proxypanel/internal/models"
	"github.com/tomtom215/proxypanel/internal/session"
	"github.com/tomtom215/proxypanel/internal/store"
	"github.com/tomtom215/proxypanel/internal/views"
)

const (
	portalBack  = "/portal"
	portalLogin = "/portal/login"
)

func (rt *Router) portalRoutes(r chi.Router) {
	r.Get("/login", func(w http.ResponseWriter, r *http.Request) {
		rt.render(w, r, http.StatusOK, views.PagePortalLogin, views.PortalLogin(store.PortalState{}, ""))
	})
	r.With(rt.chi.LoginRateLimit("portal_login")).Post("/login", rt.portalSignIn)
	r.Post("/logout", rt.portalSignOut)

	r.Group(func(r chi.Router) {
		r.Use(rt.portalLoader(rt.portalLoginRequired))
		r.Get("/", rt.portalPage)
		r.Post("/select", rt.portalSelect)
		r.Post("/checkout", func(w http.ResponseWriter, r *http.Request) {
			_, err := portalOf(r).Checkout(r.Context(), strings.TrimSpace(r.PostFormValue("plan_id")))
			rt.afterMutation(w, r, err, portalBack)
		})
		r.Get("/config", rt.portalDownload)
	})

	r.Group(func(r chi.Router) {
		r.Use(rt.portalLoader(rt.apiLoginRequired))
		r.Get("/state", rt.portalState)
	})
}

type (
	accountKey struct{}
	portalKey  struct{}
)

// portalOf returns the portal store the loader resolved for the request.
func portalOf(r *http.Request) *store.Portal {
	return r.Context().Value(portalKey{}).(*store.Portal)
}

// portalLoader resolves the browser's portal store and verifies the subscriber
// session before any protected portal route.
func (rt *Router) portalLoader(onFail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := session.IDFromContext(r.Context())
			if id == "" {
				onFail(w, r, store.ErrNotAuthenticated)
				return
			}
			p, err := rt.stores.Portal.Get(id)
			if err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to create portal session")
				rt.renderError(w, r, http.StatusInternalServerError, "Could not start a session", portalLogin)
				return
			}
			account, err := p.Verify(r.Context())
			if err != nil {
				if errors.Is(err, store.ErrNotAuthenticated) {
					rt.stores.Portal.Forget(id)
				}
				onFail(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), accountKey{}, account)
			ctx = context.WithValue(ctx, portalKey{}, p)
			ctx = logging.ContextWithActor(ctx, account.AccountNumber)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (rt *Router) portalLoginRequired(w http.ResponseWriter, r *http.Request, err error) {
	var st store.PortalState
	if p, ok := rt.stores.Portal.Lookup(session.IDFromContext(r.Context())); ok {
		st = p.State()
	}
	page := views.PortalLogin(st, "")
	page.FieldErrors = nil
	page.Error = loaderMessage(err)
	if !errors.Is(err, store.ErrNotAuthenticated) {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Portal session check failed")
	}
	rt.render(w, r, http.StatusUnauthorized, views.PagePortalLogin, page)
}

// portalSignIn persists the subscriber token under a freshly issued session.
// A rejected account number is shown inline without a redirect.
func (rt *Router) portalSignIn(w http.ResponseWriter, r *http.Request) {
	form := models.PortalLoginForm{AccountNumber: strings.TrimSpace(r.PostFormValue("account_number"))}
	r, previous := rt.portalCookie.Issue(w, r)
	if previous != "" {
		rt.stores.Portal.Forget(previous)
	}
	id := session.IDFromContext(r.Context())
	p, err := rt.stores.Portal.Get(id)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to create portal session")
		rt.renderError(w, r, http.StatusInternalServerError, "Could not start a session", portalLogin)
		return
	}
	if err := p.Login(r.Context(), form); err != nil {
		page := views.PortalLogin(p.State(), form.AccountNumber)
		rt.stores.Portal.Forget(id)
		rt.render(w, r, statusFor(err), views.PagePortalLogin, page)
		return
	}
	seeOther(w, r, portalBack)
}

func (rt *Router) portalSignOut(w http.ResponseWriter, r *http.Request) {
	if id := session.IDFromContext(r.Context()); id != "" {
		if p, err := rt.stores.Portal.Get(id); err == nil {
			if err := p.Logout(r.Context()); err != nil {
				logging.Ctx(r.Context()).Warn().Err(err).Msg("Portal logout failed")
			}
		}
		rt.stores.Portal.Forget(id)
	}
	rt.portalCookie.Clear(w, r)
	seeOther(w, r, portalLogin)
}

// portalPage refreshes plans and servers; the account was loaded by the loader.
func (rt *Router) portalPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := portalOf(r)
	if err := p.FetchPlans(ctx); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("Plan list fetch failed")
	}
	if err := p.FetchServers(ctx); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("Server list fetch failed")
	}
	rt.render(w, r, http.StatusOK, views.PagePortal, views.Portal(p.State(), rt.layout(r), rt.cfg.Now()))
}

func (rt *Router) portalSelect(w http.ResponseWriter, r *http.Request) {
	nodeID, err := strconv.Atoi(r.PostFormValue("node_id"))
	if err != nil {
		rt.afterMutation(w, r, errNotFound, portalBack)
		return
	}
	serviceID, err := strconv.Atoi(r.PostFormValue("service_id"))
	if err != nil {
		rt.afterMutation(w, r, errNotFound, portalBack)
		return
	}
	rt.afterMutation(w, r, portalOf(r).Select(nodeID, serviceID), portalBack)
}

func (rt *Router) portalDownload(w http.ResponseWriter, r *http.Request) {
	blob, err := portalOf(r).DownloadConfig(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Config download failed")
		rt.renderError(w, r, statusFor(err), messageFor(err), portalBack)
		return
	}
	sendBlob(w, r, blob, "config.json")
}
