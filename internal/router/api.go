// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package router

import (
	"net/http"

	"github.com/tomtom215/proxypanel/internal/models"
)

// State endpoints return the current store snapshots without refreshing them.

func (rt *Router) dashboardState(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, storesOf(r).Dashboard.State())
}

func (rt *Router) nodesState(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, storesOf(r).Nodes.State())
}

// coreStateResponse carries the draft as text since it may not be valid JSON.
type coreStateResponse struct {
	Info          *models.CoreInfo `json:"info,omitempty"`
	Draft         string           `json:"draft"`
	Dirty         bool             `json:"dirty"`
	Saving        bool             `json:"saving"`
	Restarting    bool             `json:"restarting"`
	Error         string           `json:"error,omitempty"`
	Logs          []string         `json:"logs"`
	LogsConnected bool             `json:"logs_connected"`
}

func (rt *Router) coreState(w http.ResponseWriter, r *http.Request) {
	st := storesOf(r).Core.State()
	respondData(w, r, coreStateResponse{
		Info:          st.Info,
		Draft:         string(st.Draft),
		Dirty:         st.Dirty,
		Saving:        st.Saving,
		Restarting:    st.Restarting,
		Error:         st.Error,
		Logs:          st.Logs,
		LogsConnected: st.LogsConnected,
	})
}

func (rt *Router) certificatesState(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, storesOf(r).Certificates.State())
}

func (rt *Router) portalState(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, portalOf(r).State())
}
