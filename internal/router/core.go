// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/proxypanel/internal/logging"
	"github.com/tomtom215/proxypanel/internal/views"
)

const (
	coreBack         = "/core"
	certificatesBack = "/certificates"
)

func (rt *Router) coreRoutes(r chi.Router) {
	r.Get("/", rt.corePage)
	r.Post("/restart", func(w http.ResponseWriter, r *http.Request) {
		rt.afterMutation(w, r, storesOf(r).Core.RestartCore(r.Context()), coreBack)
	})
	r.Post("/config", func(w http.ResponseWriter, r *http.Request) {
		if err := storesOf(r).Core.SetDraft([]byte(r.PostFormValue("config"))); err != nil {
			rt.afterMutation(w, r, err, coreBack)
			return
		}
		rt.afterMutation(w, r, storesOf(r).Core.SaveConfig(r.Context()), coreBack)
	})
	r.Post("/config/draft", func(w http.ResponseWriter, r *http.Request) {
		rt.afterMutation(w, r, storesOf(r).Core.SetDraft([]byte(r.PostFormValue("config"))), coreBack)
	})
	r.Post("/config/reset", func(w http.ResponseWriter, r *http.Request) {
		storesOf(r).Core.ResetDraft()
		seeOther(w, r, coreBack)
	})
	r.Post("/logs/clear", func(w http.ResponseWriter, r *http.Request) {
		storesOf(r).Core.ClearLogs()
		seeOther(w, r, coreBack)
	})
}

// corePage refreshes the core info. The configuration is only reloaded when
// there are no unsaved edits.
func (rt *Router) corePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := storesOf(r).Core
	if err := c.FetchInfo(ctx); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("Core info fetch failed")
	}
	if st := c.State(); st.Config == nil || !st.Dirty {
		if err := c.FetchConfig(ctx); err != nil {
			logging.Ctx(ctx).Debug().Err(err).Msg("Core config fetch failed")
		}
	}
	rt.render(w, r, http.StatusOK, views.PageCore, views.Core(c.State(), rt.nav(r, "core")))
}

func (rt *Router) certificatesRoutes(r chi.Router) {
	r.Get("/", rt.certificatesPage)
	r.Get("/ca.pem", func(w http.ResponseWriter, r *http.Request) {
		blob, err := storesOf(r).Certificates.DownloadCA(r.Context())
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("CA download failed")
			rt.renderError(w, r, statusFor(err), messageFor(err), certificatesBack)
			return
		}
		sendBlob(w, r, blob, "ca.pem")
	})
	r.Post("/ca/regenerate", func(w http.ResponseWriter, r *http.Request) {
		storesOf(r).Certificates.RequestRegenerateCA()
		seeOther(w, r, certificatesBack)
	})
	r.Post("/ca/regenerate/confirm", func(w http.ResponseWriter, r *http.Request) {
		rt.afterMutation(w, r, storesOf(r).Certificates.ConfirmRegenerateCA(r.Context()), certificatesBack)
	})
	r.Post("/ca/regenerate/cancel", func(w http.ResponseWriter, r *http.Request) {
		storesOf(r).Certificates.CancelRegenerateCA()
		seeOther(w, r, certificatesBack)
	})
	r.Post("/nodes/{node}", func(w http.ResponseWriter, r *http.Request) {
		id, err := intParam(r, "node")
		if err == nil {
			err = storesOf(r).Certificates.FetchNodeCertificate(r.Context(), id)
		}
		rt.afterMutation(w, r, err, certificatesBack)
	})
	r.Post("/nodes/{node}/rotate", func(w http.ResponseWriter, r *http.Request) {
		id, err := intParam(r, "node")
		if err == nil {
			err = storesOf(r).Certificates.RotateNodeCertificate(r.Context(), id)
		}
		rt.afterMutation(w, r, err, certificatesBack)
	})
}

// certificatesPage shows the CA next to one row per known node.
func (rt *Router) certificatesPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stores := storesOf(r)
	if err := stores.Certificates.FetchCA(ctx); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("CA fetch failed")
	}
	if stores.Nodes.State().Nodes == nil {
		if err := stores.Nodes.FetchNodes(ctx); err != nil {
			logging.Ctx(ctx).Debug().Err(err).Msg("Node list fetch failed")
		}
	}
	page := views.Certificates(
		stores.Certificates.State(),
		stores.Nodes.State().Nodes,
		rt.nav(r, "certificates"),
		rt.cfg.Now(),
	)
	rt.render(w, r, http.StatusOK, views.PageCertificates, page)
}
