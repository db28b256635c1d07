// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tomtom215/proxypanel/internal/logging"
	"github.com/tomtom215/proxypanel/internal/metrics"
	"github.com/tomtom215/proxypanel/internal/models"
	"github.com/tomtom215/proxypanel/internal/panel"
	"github.com/tomtom215/proxypanel/internal/validation"
)

const nodesStore = "nodes"

// NodesAPI is the part of the admin API the nodes store uses.
type NodesAPI interface {
	ListNodes(ctx context.Context) ([]models.Node, error)
	CreateNode(ctx context.Context, req models.NodeRequest) (*models.Node, error)
	ModifyNode(ctx context.Context, id int, req models.NodeRequest) (*models.Node, error)
	DeleteNode(ctx context.Context, id int) error
	ReconnectNode(ctx context.Context, id int) error
	ListServices(ctx context.Context, nodeID int) ([]models.ServiceConfig, error)
	CreateService(ctx context.Context, nodeID int, req models.ServiceRequest) (*models.ServiceConfig, error)
	ModifyService(ctx context.Context, nodeID, serviceID int, req models.ServiceRequest) (*models.ServiceConfig, error)
	DeleteService(ctx context.Context, nodeID, serviceID int) error
}

// ServiceTarget addresses a service within its node. A zero Service.ID means
// a service being created.
type ServiceTarget struct {
	NodeID  int                  `json:"node_id"`
	Service models.ServiceConfig `json:"service"`
}

// NodesState is a snapshot of the nodes store.
type NodesState struct {
	Nodes   []models.Node `json:"nodes"`
	Loading bool          `json:"loading"`
	Error   string        `json:"error,omitempty"`

	Creating Slot[struct{}]    `json:"creating"`
	Editing  Slot[models.Node] `json:"editing"`
	Deleting Slot[models.Node] `json:"deleting"`

	// Services is keyed by parent node id.
	Services        map[int][]models.ServiceConfig `json:"services"`
	ServiceErrors   map[int]string                 `json:"service_errors,omitempty"`
	EditingService  Slot[ServiceTarget]            `json:"editing_service"`
	DeletingService Slot[ServiceTarget]            `json:"deleting_service"`

	Reconnecting map[int]bool `json:"reconnecting,omitempty"`
}

// Node finds a listed node by id.
func (s NodesState) Node(id int) (models.Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return models.Node{}, false
}

// ServicesOf returns the loaded services of nodeID.
func (s NodesState) ServicesOf(nodeID int) []models.ServiceConfig {
	return s.Services[nodeID]
}

// CountByStatus tallies nodes per status.
func (s NodesState) CountByStatus() map[models.NodeStatus]int {
	out := make(map[models.NodeStatus]int)
	for _, n := range s.Nodes {
		out[n.Status]++
	}
	return out
}

// Nodes is the admin node and service store.
type Nodes struct {
	*observers

	api NodesAPI

	mu          sync.Mutex
	state       NodesState
	list        generation
	serviceGens map[int]*generation
}

// NewNodes builds the nodes store.
func NewNodes(api NodesAPI) *Nodes {
	return &Nodes{
		observers:   newObservers(nodesStore),
		api:         api,
		serviceGens: make(map[int]*generation),
		state: NodesState{
			Services:      make(map[int][]models.ServiceConfig),
			ServiceErrors: make(map[int]string),
			Reconnecting:  make(map[int]bool),
		},
	}
}

// State returns a snapshot.
func (n *Nodes) State() NodesState {
	n.mu.Lock()
	defer n.mu.Unlock()

	s := n.state
	s.Nodes = append([]models.Node(nil), n.state.Nodes...)
	s.Services = make(map[int][]models.ServiceConfig, len(n.state.Services))
	for id, list := range n.state.Services {
		s.Services[id] = append([]models.ServiceConfig(nil), list...)
	}
	s.ServiceErrors = copyMap(n.state.ServiceErrors)
	s.Reconnecting = copyMap(n.state.Reconnecting)
	return s
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (n *Nodes) update(fn func(s *NodesState)) {
	n.mu.Lock()
	fn(&n.state)
	n.mu.Unlock()
	n.notify()
}

// FetchNodes loads the node list. Only the latest issued fetch is applied.
func (n *Nodes) FetchNodes(ctx context.Context) error {
	n.mu.Lock()
	gen := n.list.issue()
	n.state.Loading = true
	n.mu.Unlock()
	n.notify()

	nodes, err := n.api.ListNodes(ctx)

	n.mu.Lock()
	if !n.list.current(gen) {
		n.mu.Unlock()
		metrics.StoreStaleResults.WithLabelValues(nodesStore, "nodes").Inc()
		logging.Ctx(ctx).Debug().Uint64("generation", gen).Msg("Discarding superseded node list")
		return nil
	}
	n.state.Loading = false
	if err != nil {
		n.state.Error = errorText(err)
	} else {
		sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
		n.state.Nodes = nodes
		n.state.Error = ""
		n.pruneServicesLocked()
	}
	n.mu.Unlock()
	n.notify()

	if err != nil {
		return fmt.Errorf("fetch nodes: %w", err)
	}
	return nil
}

// pruneServicesLocked drops service lists and fetch generations of nodes
// that no longer exist.
func (n *Nodes) pruneServicesLocked() {
	live := make(map[int]bool, len(n.state.Nodes))
	for _, node := range n.state.Nodes {
		live[node.ID] = true
	}
	for id := range n.state.Services {
		if !live[id] {
			delete(n.state.Services, id)
		}
	}
	for id := range n.state.ServiceErrors {
		if !live[id] {
			delete(n.state.ServiceErrors, id)
		}
	}
	for id := range n.serviceGens {
		if !live[id] {
			delete(n.serviceGens, id)
		}
	}
}

func (n *Nodes) refetch(ctx context.Context) {
	metrics.StoreRefetches.WithLabelValues(nodesStore, "nodes").Inc()
	if err := n.FetchNodes(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Node list refetch failed")
	}
}

// OnCreateNode opens or closes the create dialog. Opening closes the edit
// dialog; it is refused while an edit is being submitted.
func (n *Nodes) OnCreateNode(open bool) {
	n.update(func(s *NodesState) {
		if !open {
			s.Creating.Clear()
			return
		}
		if s.Editing.Submitting() {
			return
		}
		if s.Creating.Select(struct{}{}) {
			s.Editing.Clear()
		}
	})
}

// OnEditingNode selects node for editing, or closes the dialog when nil.
func (n *Nodes) OnEditingNode(node *models.Node) {
	n.update(func(s *NodesState) {
		if node == nil {
			s.Editing.Clear()
			return
		}
		if s.Creating.Submitting() {
			return
		}
		if s.Editing.Select(*node) {
			s.Creating.Clear()
		}
	})
}

// OnDeletingNode opens the delete confirmation for node, or closes it.
func (n *Nodes) OnDeletingNode(node *models.Node) {
	n.update(func(s *NodesState) { selectOrClear(&s.Deleting, node) })
}

func requireNode(node models.Node) error {
	if node.ID <= 0 {
		return panel.ErrInvalidNodeID
	}
	return nil
}

// CreateNode submits the create dialog.
func (n *Nodes) CreateNode(ctx context.Context, form models.NodeForm) error {
	precheck := func(struct{}) error {
		if verr := validation.ValidateStruct(form); verr != nil {
			return verr
		}
		return nil
	}
	err := submit(ctx, &n.mu, &n.state.Creating, n.observers, precheck, func(ctx context.Context, _ struct{}) error {
		_, err := n.api.CreateNode(ctx, form.Request())
		return err
	})
	metrics.RecordMutation(nodesStore, "create_node", err)
	if err != nil {
		return err
	}
	n.refetch(ctx)
	return nil
}

// EditNode submits the edit dialog for the selected node.
func (n *Nodes) EditNode(ctx context.Context, form models.NodeForm) error {
	precheck := func(node models.Node) error {
		if err := requireNode(node); err != nil {
			return err
		}
		if verr := validation.ValidateStruct(form); verr != nil {
			return verr
		}
		return nil
	}
	err := submit(ctx, &n.mu, &n.state.Editing, n.observers, precheck, func(ctx context.Context, node models.Node) error {
		_, err := n.api.ModifyNode(ctx, node.ID, form.Request())
		return err
	})
	metrics.RecordMutation(nodesStore, "edit_node", err)
	if err != nil {
		return err
	}
	n.refetch(ctx)
	return nil
}

// DeleteNode confirms the pending delete. The node's services go with it.
func (n *Nodes) DeleteNode(ctx context.Context) error {
	var id int
	err := submit(ctx, &n.mu, &n.state.Deleting, n.observers, requireNode, func(ctx context.Context, node models.Node) error {
		id = node.ID
		return n.api.DeleteNode(ctx, node.ID)
	})
	metrics.RecordMutation(nodesStore, "delete_node", err)
	if err != nil {
		return err
	}
	n.update(func(s *NodesState) {
		delete(s.Services, id)
		delete(s.ServiceErrors, id)
		if s.Editing.Value.ID == id {
			s.Editing.Clear()
		}
		if s.EditingService.Value.NodeID == id {
			s.EditingService.Clear()
		}
		if s.DeletingService.Value.NodeID == id {
			s.DeletingService.Clear()
		}
	})
	n.refetch(ctx)
	return nil
}

// ReconnectNode asks the panel to reconnect node id and refreshes the list.
func (n *Nodes) ReconnectNode(ctx context.Context, id int) error {
	if id <= 0 {
		return panel.ErrInvalidNodeID
	}
	busy := false
	n.update(func(s *NodesState) {
		busy = s.Reconnecting[id]
		s.Reconnecting[id] = true
	})
	if busy {
		return ErrBusy
	}

	err := n.api.ReconnectNode(ctx, id)
	metrics.RecordMutation(nodesStore, "reconnect_node", err)
	n.update(func(s *NodesState) {
		delete(s.Reconnecting, id)
		if err != nil {
			s.Error = errorText(err)
		}
	})
	if err != nil {
		return fmt.Errorf("reconnect node %d: %w", id, err)
	}
	n.refetch(ctx)
	return nil
}

// FetchServices loads the services of nodeID. Per node, only the latest
// issued fetch is applied.
func (n *Nodes) FetchServices(ctx context.Context, nodeID int) error {
	if nodeID <= 0 {
		return panel.ErrInvalidNodeID
	}

	n.mu.Lock()
	g, ok := n.serviceGens[nodeID]
	if !ok {
		g = &generation{}
		n.serviceGens[nodeID] = g
	}
	gen := g.issue()
	n.mu.Unlock()

	services, err := n.api.ListServices(ctx, nodeID)

	n.mu.Lock()
	if !g.current(gen) || n.serviceGens[nodeID] != g {
		n.mu.Unlock()
		metrics.StoreStaleResults.WithLabelValues(nodesStore, "services").Inc()
		return nil
	}
	if err != nil {
		n.state.ServiceErrors[nodeID] = errorText(err)
	} else {
		kept := services[:0]
		for _, svc := range services {
			if svc.NodeID == 0 || svc.NodeID == nodeID {
				svc.NodeID = nodeID
				kept = append(kept, svc)
			}
		}
		n.state.Services[nodeID] = kept
		delete(n.state.ServiceErrors, nodeID)
	}
	n.mu.Unlock()
	n.notify()

	if err != nil {
		return fmt.Errorf("fetch services of node %d: %w", nodeID, err)
	}
	return nil
}

func (n *Nodes) refetchServices(ctx context.Context, nodeID int) {
	metrics.StoreRefetches.WithLabelValues(nodesStore, "services").Inc()
	if err := n.FetchServices(ctx, nodeID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int("node_id", nodeID).Msg("Service list refetch failed")
	}
}

// OnCreateService opens the service dialog for a new service on nodeID.
func (n *Nodes) OnCreateService(nodeID int) error {
	if nodeID <= 0 {
		return panel.ErrInvalidNodeID
	}
	n.update(func(s *NodesState) {
		s.EditingService.Select(ServiceTarget{NodeID: nodeID})
	})
	return nil
}

// OnEditingService selects svc of nodeID for editing, or closes the dialog
// when svc is nil.
func (n *Nodes) OnEditingService(nodeID int, svc *models.ServiceConfig) error {
	return n.selectService(nodeID, svc, func(s *NodesState) *Slot[ServiceTarget] { return &s.EditingService })
}

// OnDeletingService opens the delete confirmation for svc of nodeID, or
// closes it when svc is nil.
func (n *Nodes) OnDeletingService(nodeID int, svc *models.ServiceConfig) error {
	return n.selectService(nodeID, svc, func(s *NodesState) *Slot[ServiceTarget] { return &s.DeletingService })
}

func (n *Nodes) selectService(nodeID int, svc *models.ServiceConfig, slotOf func(*NodesState) *Slot[ServiceTarget]) error {
	if svc == nil {
		n.update(func(s *NodesState) { slotOf(s).Clear() })
		return nil
	}
	if nodeID <= 0 {
		return panel.ErrInvalidNodeID
	}
	if svc.NodeID != 0 && svc.NodeID != nodeID {
		return fmt.Errorf("service %d belongs to node %d, not %d: %w", svc.ID, svc.NodeID, nodeID, panel.ErrInvalidServiceID)
	}
	target := ServiceTarget{NodeID: nodeID, Service: *svc}
	target.Service.NodeID = nodeID
	n.update(func(s *NodesState) { slotOf(s).Select(target) })
	return nil
}

func requireServiceNode(t ServiceTarget) error {
	if t.NodeID <= 0 {
		return panel.ErrInvalidNodeID
	}
	return nil
}

// CreateService submits the service dialog opened with OnCreateService.
func (n *Nodes) CreateService(ctx context.Context, form models.ServiceForm) error {
	return n.saveService(ctx, form, "create_service", func(t ServiceTarget) error {
		if t.Service.ID != 0 {
			return fmt.Errorf("dialog is editing service %d: %w", t.Service.ID, ErrNoSelection)
		}
		return nil
	})
}

// EditService submits the service dialog for the selected service.
func (n *Nodes) EditService(ctx context.Context, form models.ServiceForm) error {
	return n.saveService(ctx, form, "edit_service", func(t ServiceTarget) error {
		if t.Service.ID <= 0 {
			return panel.ErrInvalidServiceID
		}
		return nil
	})
}

func (n *Nodes) saveService(ctx context.Context, form models.ServiceForm, action string, mode func(ServiceTarget) error) error {
	var cfg models.ServiceConfig
	precheck := func(t ServiceTarget) error {
		if err := requireServiceNode(t); err != nil {
			return err
		}
		if err := mode(t); err != nil {
			return err
		}
		if verr := validation.ValidateStruct(form); verr != nil {
			return verr
		}
		var err error
		cfg, err = form.Config(t.NodeID)
		return err
	}

	var nodeID int
	err := submit(ctx, &n.mu, &n.state.EditingService, n.observers, precheck, func(ctx context.Context, t ServiceTarget) error {
		nodeID = t.NodeID
		var err error
		if t.Service.ID == 0 {
			_, err = n.api.CreateService(ctx, t.NodeID, cfg)
		} else {
			_, err = n.api.ModifyService(ctx, t.NodeID, t.Service.ID, cfg)
		}
		return err
	})
	metrics.RecordMutation(nodesStore, action, err)
	if err != nil {
		return err
	}
	n.refetchServices(ctx, nodeID)
	return nil
}

// DeleteService confirms the pending service delete.
func (n *Nodes) DeleteService(ctx context.Context) error {
	precheck := func(t ServiceTarget) error {
		if err := requireServiceNode(t); err != nil {
			return err
		}
		if t.Service.ID <= 0 {
			return panel.ErrInvalidServiceID
		}
		return nil
	}
	var nodeID int
	err := submit(ctx, &n.mu, &n.state.DeletingService, n.observers, precheck, func(ctx context.Context, t ServiceTarget) error {
		nodeID = t.NodeID
		return n.api.DeleteService(ctx, t.NodeID, t.Service.ID)
	})
	metrics.RecordMutation(nodesStore, "delete_service", err)
	if err != nil {
		return err
	}
	n.refetchServices(ctx, nodeID)
	return nil
}
