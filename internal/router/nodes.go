// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/proxypanel/internal/logging"
	"github.com/tomtom215/proxypanel/internal/models"
	"github.com/tomtom215/proxypanel/internal/views"
)

const nodesBack = "/nodes"

func (rt *Router) nodesRoutes(r chi.Router) {
	r.Get("/", rt.nodesPage)
	r.Post("/", rt.createNode)
	r.Post("/new", rt.nodesAction(func(r *http.Request) error {
		storesOf(r).Nodes.OnCreateNode(true)
		return nil
	}))
	r.Post("/new/cancel", rt.nodesAction(func(r *http.Request) error {
		storesOf(r).Nodes.OnCreateNode(false)
		return nil
	}))
	r.Post("/edit/cancel", rt.nodesAction(func(r *http.Request) error {
		storesOf(r).Nodes.OnEditingNode(nil)
		return nil
	}))
	r.Post("/delete/confirm", rt.nodesAction(func(r *http.Request) error {
		return storesOf(r).Nodes.DeleteNode(r.Context())
	}))
	r.Post("/delete/cancel", rt.nodesAction(func(r *http.Request) error {
		storesOf(r).Nodes.OnDeletingNode(nil)
		return nil
	}))

	r.Post("/services/edit/cancel", rt.nodesAction(func(r *http.Request) error {
		return storesOf(r).Nodes.OnEditingService(0, nil)
	}))
	r.Post("/services/delete/confirm", rt.nodesAction(func(r *http.Request) error {
		return storesOf(r).Nodes.DeleteService(r.Context())
	}))
	r.Post("/services/delete/cancel", rt.nodesAction(func(r *http.Request) error {
		return storesOf(r).Nodes.OnDeletingService(0, nil)
	}))

	r.Route("/{node}", func(r chi.Router) {
		r.Post("/", rt.editNode)
		r.Post("/edit", rt.withNode(func(r *http.Request, node models.Node) error {
			storesOf(r).Nodes.OnEditingNode(&node)
			return nil
		}))
		r.Post("/delete", rt.withNode(func(r *http.Request, node models.Node) error {
			storesOf(r).Nodes.OnDeletingNode(&node)
			return nil
		}))
		r.Post("/reconnect", rt.withNode(func(r *http.Request, node models.Node) error {
			return storesOf(r).Nodes.ReconnectNode(r.Context(), node.ID)
		}))

		r.Post("/services", rt.createService)
		r.Post("/services/new", rt.withNode(func(r *http.Request, node models.Node) error {
			return storesOf(r).Nodes.OnCreateService(node.ID)
		}))
		r.Post("/services/{service}", rt.editService)
		r.Post("/services/{service}/edit", rt.withService(func(r *http.Request, nodeID int, svc models.ServiceConfig) error {
			return storesOf(r).Nodes.OnEditingService(nodeID, &svc)
		}))
		r.Post("/services/{service}/delete", rt.withService(func(r *http.Request, nodeID int, svc models.ServiceConfig) error {
			return storesOf(r).Nodes.OnDeletingService(nodeID, &svc)
		}))
	})
}

func (rt *Router) nodesAction(fn func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rt.afterMutation(w, r, fn(r), nodesBack)
	}
}

// withNode resolves the {node} URL parameter against the listed nodes.
func (rt *Router) withNode(fn func(r *http.Request, node models.Node) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := intParam(r, "node")
		if err != nil {
			rt.afterMutation(w, r, err, nodesBack)
			return
		}
		node, ok := storesOf(r).Nodes.State().Node(id)
		if !ok {
			rt.afterMutation(w, r, errNotFound, nodesBack)
			return
		}
		rt.afterMutation(w, r, fn(r, node), nodesBack)
	}
}

// withService resolves {node} and {service} against the loaded services of
// that node, so a service can only be addressed through its parent.
func (rt *Router) withService(fn func(r *http.Request, nodeID int, svc models.ServiceConfig) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nodeID, err := intParam(r, "node")
		if err != nil {
			rt.afterMutation(w, r, err, nodesBack)
			return
		}
		serviceID, err := intParam(r, "service")
		if err != nil {
			rt.afterMutation(w, r, err, nodesBack)
			return
		}
		for _, svc := range storesOf(r).Nodes.State().ServicesOf(nodeID) {
			if svc.ID == serviceID {
				rt.afterMutation(w, r, fn(r, nodeID, svc), nodesBack)
				return
			}
		}
		rt.afterMutation(w, r, errNotFound, nodesBack)
	}
}

// nodesPage loads the node list and the services of every node.
func (rt *Router) nodesPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n := storesOf(r).Nodes
	if err := n.FetchNodes(ctx); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("Node list fetch failed")
	}
	for _, node := range n.State().Nodes {
		if err := n.FetchServices(ctx, node.ID); err != nil {
			logging.Ctx(ctx).Debug().Err(err).Int("node_id", node.ID).Msg("Service list fetch failed")
		}
	}
	rt.renderNodes(w, r, http.StatusOK, nil)
}

func (rt *Router) renderNodes(w http.ResponseWriter, r *http.Request, status int, fields map[string]string) {
	page := views.Nodes(storesOf(r).Nodes.State(), rt.nav(r, "nodes"), rt.layout(r))
	if fields != nil {
		page.NodeDialog.FieldErrors = fields
		page.ServiceDialog.FieldErrors = fields
	}
	rt.render(w, r, status, views.PageNodes, page)
}

func nodeForm(r *http.Request) (models.NodeForm, error) {
	form := models.NodeForm{
		Name:       strings.TrimSpace(r.PostFormValue("name")),
		Address:    strings.TrimSpace(r.PostFormValue("address")),
		Disabled:   formBool(r, "disabled"),
		ClientCert: strings.TrimSpace(r.PostFormValue("client_cert")),
		ClientKey:  strings.TrimSpace(r.PostFormValue("client_key")),
	}
	var err error
	if form.Port, err = formInt(r, "port"); err != nil {
		return form, err
	}
	if form.APIPort, err = formInt(r, "api_port"); err != nil {
		return form, err
	}
	if form.UsageCoefficient, err = formFloat(r, "usage_coefficient"); err != nil {
		return form, err
	}
	return form, nil
}

func (rt *Router) createNode(w http.ResponseWriter, r *http.Request) {
	form, err := nodeForm(r)
	if fields := fieldErrorMap(err); fields != nil {
		rt.renderNodes(w, r, http.StatusUnprocessableEntity, fields)
		return
	}
	rt.afterMutation(w, r, storesOf(r).Nodes.CreateNode(r.Context(), form), nodesBack)
}

func (rt *Router) editNode(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "node")
	if err != nil {
		rt.afterMutation(w, r, err, nodesBack)
		return
	}
	if st := storesOf(r).Nodes.State(); !st.Editing.Open() || st.Editing.Value.ID != id {
		rt.afterMutation(w, r, errSlotMismatch, nodesBack)
		return
	}

	form, err := nodeForm(r)
	if fields := fieldErrorMap(err); fields != nil {
		rt.renderNodes(w, r, http.StatusUnprocessableEntity, fields)
		return
	}
	rt.afterMutation(w, r, storesOf(r).Nodes.EditNode(r.Context(), form), nodesBack)
}

func serviceForm(r *http.Request) (models.ServiceForm, error) {
	form := models.ServiceForm{
		Tag:      strings.TrimSpace(r.PostFormValue("tag")),
		Protocol: strings.TrimSpace(r.PostFormValue("protocol")),
		Network:  strings.TrimSpace(r.PostFormValue("network")),
		Security: strings.TrimSpace(r.PostFormValue("security")),
		Advanced: r.PostFormValue("advanced"),
	}
	if form.Security == "" {
		form.Security = "none"
	}
	var err error
	form.Port, err = formInt(r, "port")
	return form, err
}

// serviceSlotMatches reports whether the open service dialog targets the
// node and service in the URL. serviceID is 0 for a new service.
func serviceSlotMatches(r *http.Request, nodeID, serviceID int) bool {
	slot := storesOf(r).Nodes.State().EditingService
	return slot.Open() && slot.Value.NodeID == nodeID && slot.Value.Service.ID == serviceID
}

func (rt *Router) createService(w http.ResponseWriter, r *http.Request) {
	rt.saveService(w, r, 0)
}

func (rt *Router) editService(w http.ResponseWriter, r *http.Request) {
	serviceID, err := intParam(r, "service")
	if err != nil {
		rt.afterMutation(w, r, err, nodesBack)
		return
	}
	rt.saveService(w, r, serviceID)
}

func (rt *Router) saveService(w http.ResponseWriter, r *http.Request, serviceID int) {
	nodeID, err := intParam(r, "node")
	if err != nil {
		rt.afterMutation(w, r, err, nodesBack)
		return
	}
	if !serviceSlotMatches(r, nodeID, serviceID) {
		rt.afterMutation(w, r, errSlotMismatch, nodesBack)
		return
	}

	form, err := serviceForm(r)
	if fields := fieldErrorMap(err); fields != nil {
		rt.renderNodes(w, r, http.StatusUnprocessableEntity, fields)
		return
	}
	if serviceID == 0 {
		err = storesOf(r).Nodes.CreateService(r.Context(), form)
	} else {
		err = storesOf(r).Nodes.EditService(r.Context(), form)
	}
	rt.afterMutation(w, r, err, nodesBack)
}
