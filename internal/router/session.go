// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package router

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/proxypanel/internal/httpclient"
	"github.com/tomtom215/proxypanel/internal/logging"
	"github.com/tomtom215/proxypanel/internal/models"
	"github.com/tomtom215/proxypanel/internal/session"
	"github.com/tomtom215/proxypanel/internal/store"
	"github.com/tomtom215/proxypanel/internal/views"
)

type (
	adminKey       struct{}
	adminStoresKey struct{}
)

// storesOf returns the stores the admin loader resolved for the request.
func storesOf(r *http.Request) *store.AdminStores {
	return r.Context().Value(adminStoresKey{}).(*store.AdminStores)
}

// adminFrom returns the admin the loader authenticated, or nil.
func adminFrom(r *http.Request) *models.Admin {
	admin, _ := r.Context().Value(adminKey{}).(*models.Admin)
	return admin
}

func (rt *Router) nav(r *http.Request, section string) views.Nav {
	nav := views.Nav{Section: section}
	if admin := adminFrom(r); admin != nil {
		nav.User = admin.Username
	}
	return nav
}

// adminLoader resolves the browser's stores and verifies the
// stored token before any protected route. onFail answers when there is no valid
// admin session. Requests without a session cookie never reach the panel.
func (rt *Router) adminLoader(onFail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := session.IDFromContext(r.Context())
			if id == "" {
				onFail(w, r, store.ErrNotAuthenticated)
				return
			}
			stores, err := rt.stores.Admin.Get(id)
			if err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to create admin session")
				rt.renderError(w, r, http.StatusInternalServerError, "Could not start a session", "/login")
				return
			}
			admin, err := stores.Session.Verify(r.Context())
			if err != nil {
				if errors.Is(err, store.ErrNotAuthenticated) {
					// Nothing stored for this id; keep no stores for it.
					rt.stores.Admin.Forget(id)
				}
				onFail(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), adminKey{}, admin)
			ctx = context.WithValue(ctx, adminStoresKey{}, stores)
			ctx = logging.ContextWithActor(ctx, admin.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// adminLoginRequired renders the sign-in page in place of the protected page.
func (rt *Router) adminLoginRequired(w http.ResponseWriter, r *http.Request, err error) {
	var st store.SessionState
	if stores, ok := rt.stores.Admin.Lookup(session.IDFromContext(r.Context())); ok {
		st = stores.Session.State()
	}
	page := views.AdminLogin(st, "")
	page.Error = loaderMessage(err)
	if !errors.Is(err, store.ErrNotAuthenticated) {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Admin session check failed")
	}
	rt.render(w, r, http.StatusUnauthorized, views.PageLogin, page)
}

func (rt *Router) apiLoginRequired(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, store.ErrNotAuthenticated) && !httpclient.IsUnauthorized(err) {
		respondError(w, r, err)
		return
	}
	respondError(w, r, store.ErrNotAuthenticated)
}

// loaderMessage is the sign-in page notice for a failed session check: nothing for a
// missing token, otherwise why the stored session could not be used.
func loaderMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrNotAuthenticated):
		return ""
	case httpclient.IsUnauthorized(err):
		return "Your session has expired, please sign in again"
	default:
		return httpclient.DetailOf(err)
	}
}

func (rt *Router) loginPage(w http.ResponseWriter, r *http.Request) {
	rt.render(w, r, http.StatusOK, views.PageLogin, views.AdminLogin(store.SessionState{}, ""))
}

// login persists the token under a freshly issued session and sends the admin
// to the dashboard. A failure re-renders the form with the panel's detail and
// no redirect.
func (rt *Router) login(w http.ResponseWriter, r *http.Request) {
	form := models.AdminLoginForm{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	r, previous := rt.adminCookie.Issue(w, r)
	if previous != "" {
		rt.stores.Admin.Forget(previous)
	}
	id := session.IDFromContext(r.Context())
	stores, err := rt.stores.Admin.Get(id)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to create admin session")
		rt.renderError(w, r, http.StatusInternalServerError, "Could not start a session", "/login")
		return
	}
	sess := stores.Session
	if err := sess.Login(r.Context(), form); err != nil {
		st := sess.State()
		rt.stores.Admin.Forget(id)
		rt.render(w, r, statusFor(err), views.PageLogin, views.AdminLogin(st, form.Username))
		return
	}
	seeOther(w, r, "/")
}

func (rt *Router) logout(w http.ResponseWriter, r *http.Request) {
	// The stores may be gone while the token is still stored.
	if id := session.IDFromContext(r.Context()); id != "" {
		if stores, err := rt.stores.Admin.Get(id); err == nil {
			if err := stores.Session.Logout(r.Context()); err != nil {
				logging.Ctx(r.Context()).Warn().Err(err).Msg("Logout failed")
			}
		}
		rt.stores.Admin.Forget(id)
	}
	rt.adminCookie.Clear(w, r)
	seeOther(w, r, "/login")
}

// csrfFailed answers a POST whose form token is missing or stale.
func (rt *Router) csrfFailed(w http.ResponseWriter, r *http.Request, _ error) {
	back := "/"
	if strings.HasPrefix(r.URL.Path, portalBack) {
		back = portalBack
	}
	rt.renderError(w, r, http.StatusForbidden, "The form has expired, reload the page and try again", back)
}
