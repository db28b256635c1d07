// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package views

import (
	"strconv"

	"github.com/tomtom215/proxypanel/internal/models"
	"github.com/tomtom215/proxypanel/internal/store"
)

// NodeRow is one line of the nodes table.
type NodeRow struct {
	ID           int
	Name         string
	Endpoint     string
	Status       models.NodeStatus
	Message      string
	Version      string
	Coefficient  string
	Reconnecting bool
	Services     []ServiceRow
	ServiceError string
}

// ServiceRow is one service of a node.
type ServiceRow struct {
	ID       int
	NodeID   int
	Tag      string
	Protocol string
	Network  string
	Security string
	Port     int
	Extra    []string
}

// NodesPage is the node management page.
type NodesPage struct {
	Nav     Nav
	Compact bool
	Loading bool
	Error   string
	Rows    []NodeRow
	Summary map[models.NodeStatus]int

	NodeDialog    NodeDialog
	DeleteNode    Confirm
	ServiceDialog ServiceDialog
	DeleteService Confirm
}

// NodeDialog is the create/edit node modal.
type NodeDialog struct {
	Dialog
	Editing bool
	Node    models.Node
}

// ServiceDialog is the create/edit service modal of one node.
type ServiceDialog struct {
	Dialog
	NodeID  int
	Editing bool
	Service ServiceRow
}

func serviceRow(svc models.ServiceConfig) ServiceRow {
	return ServiceRow{
		ID:       svc.ID,
		NodeID:   svc.NodeID,
		Tag:      svc.Tag,
		Protocol: svc.Protocol,
		Network:  svc.Network,
		Security: svc.Security,
		Port:     svc.Port,
		Extra:    svc.ExtraKeys(),
	}
}

// Nodes builds the node management page from a nodes snapshot.
func Nodes(st store.NodesState, nav Nav, layout Layout) NodesPage {
	page := NodesPage{
		Nav:     nav,
		Compact: layout.Compact(),
		Loading: st.Loading,
		Error:   st.Error,
		Summary: st.CountByStatus(),
	}

	for _, n := range st.Nodes {
		row := NodeRow{
			ID:           n.ID,
			Name:         n.Name,
			Endpoint:     n.Address + ":" + strconv.Itoa(n.Port),
			Status:       n.Status,
			Message:      n.Message,
			Version:      n.XrayVersion,
			Coefficient:  strconv.FormatFloat(n.UsageCoefficient, 'f', -1, 64),
			Reconnecting: st.Reconnecting[n.ID],
			ServiceError: st.ServiceErrors[n.ID],
		}
		for _, svc := range st.ServicesOf(n.ID) {
			row.Services = append(row.Services, serviceRow(svc))
		}
		page.Rows = append(page.Rows, row)
	}

	switch {
	case st.Editing.Open():
		page.NodeDialog = NodeDialog{Dialog: dialogOf(st.Editing), Editing: true, Node: st.Editing.Value}
	case st.Creating.Open():
		page.NodeDialog = NodeDialog{Dialog: dialogOf(st.Creating)}
	}
	page.DeleteNode = Confirm{
		Dialog:  dialogOf(st.Deleting),
		Title:   "Delete node",
		Message: "Delete node " + st.Deleting.Value.Name + " and all of its services?",
		Action:  "/nodes/delete/confirm",
		Cancel:  "/nodes/delete/cancel",
	}

	if st.EditingService.Open() {
		t := st.EditingService.Value
		page.ServiceDialog = ServiceDialog{
			Dialog:  dialogOf(st.EditingService),
			NodeID:  t.NodeID,
			Editing: t.Service.ID > 0,
			Service: serviceRow(t.Service),
		}
	}
	del := st.DeletingService.Value
	page.DeleteService = Confirm{
		Dialog:  dialogOf(st.DeletingService),
		Title:   "Delete service",
		Message: "Delete service " + del.Service.Tag + " from node " + strconv.Itoa(del.NodeID) + "?",
		Action:  "/nodes/services/delete/confirm",
		Cancel:  "/nodes/services/delete/cancel",
	}
	return page
}
