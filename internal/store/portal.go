// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tomtom215/proxypanel/internal/httpclient"
	"github.com/tomtom215/proxypanel/internal/logging"
	"github.com/tomtom215/proxypanel/internal/metrics"
	"github.com/tomtom215/proxypanel/internal/models"
	"github.com/tomtom215/proxypanel/internal/panel"
	"github.com/tomtom215/proxypanel/internal/tokenstore"
	"github.com/tomtom215/proxypanel/internal/validation"
)

const portalStore = "portal"

// ErrUnknownService is returned by Select when the service is not offered on
// the chosen node.
var ErrUnknownService = errors.New("service does not belong to the selected server")

// PortalAPI is the part of the portal API the portal store uses.
type PortalAPI interface {
	Login(ctx context.Context, accountNumber string) (*models.TokenResponse, error)
	Account(ctx context.Context) (*models.Account, error)
	Plans(ctx context.Context) ([]models.Plan, error)
	Servers(ctx context.Context) ([]models.Server, error)
	Checkout(ctx context.Context, planID string) (*models.Checkout, error)
	DownloadConfig(ctx context.Context, nodeID, serviceID int) (*models.Blob, error)
}

// Selection is the node and service whose client config the user wants.
type Selection struct {
	NodeID    int `json:"node_id"`
	ServiceID int `json:"service_id"`
}

// PortalState is a snapshot of the client portal store.
type PortalState struct {
	Authenticated bool              `json:"authenticated"`
	LoggingIn     bool              `json:"logging_in"`
	Account       *models.Account   `json:"account,omitempty"`
	Plans         []models.Plan     `json:"plans"`
	Servers       []models.Server   `json:"servers"`
	Selection     *Selection        `json:"selection,omitempty"`
	Checkout      *models.Checkout  `json:"checkout,omitempty"`
	CheckingOut   bool              `json:"checking_out"`
	Error         string            `json:"error,omitempty"`
	FieldErrors   map[string]string `json:"field_errors,omitempty"`
}

// Server returns the offered server for nodeID.
func (s PortalState) Server(nodeID int) (models.Server, bool) {
	for _, srv := range s.Servers {
		if srv.NodeID == nodeID {
			return srv, true
		}
	}
	return models.Server{}, false
}

// Portal is the end-user session: account, offered servers and plans.
type Portal struct {
	*observers

	api    PortalAPI
	tokens TokenStore
	audit  *logging.SecurityLogger

	mu      sync.Mutex
	state   PortalState
	servers generation
}

// NewPortal builds the client portal store.
func NewPortal(api PortalAPI, tokens TokenStore) *Portal {
	return &Portal{
		observers: newObservers(portalStore),
		api:       api,
		tokens:    tokens,
		audit:     logging.NewSecurityLogger(),
	}
}

// State returns a snapshot.
func (p *Portal) State() PortalState {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.state
	s.Plans = append([]models.Plan(nil), p.state.Plans...)
	s.Servers = append([]models.Server(nil), p.state.Servers...)
	return s
}

func (p *Portal) update(fn func(s *PortalState)) {
	p.mu.Lock()
	fn(&p.state)
	p.mu.Unlock()
	p.notify()
}

// Login signs in with an account number. A blank or "undefined" number is
// rejected before any request is sent.
func (p *Portal) Login(ctx context.Context, form models.PortalLoginForm) error {
	ip := logging.ClientIPFromContext(ctx)

	if verr := validation.ValidateStruct(form); verr != nil || !panel.ValidAccountNumber(form.AccountNumber) {
		var err error = panel.ErrMissingAccountNumber
		fields := map[string]string{"account_number": "Account number is required"}
		if verr != nil {
			err = verr
			fields = verr.FieldErrors()
		}
		p.update(func(s *PortalState) {
			s.Error = errorText(err)
			s.FieldErrors = fields
		})
		return err
	}

	busy := false
	p.update(func(s *PortalState) {
		busy = s.LoggingIn
		s.LoggingIn = true
		s.Error = ""
		s.FieldErrors = nil
	})
	if busy {
		return ErrBusy
	}

	account := strings.TrimSpace(form.AccountNumber)
	err := p.login(ctx, account)
	metrics.RecordMutation(portalStore, "login", err)
	if err != nil {
		p.audit.LogLoginFailure(tokenstore.ActorClient, account, ip, httpclient.DetailOf(err))
		p.update(func(s *PortalState) {
			s.LoggingIn = false
			s.Error = errorText(err)
			s.FieldErrors = fieldErrors(err)
		})
		return err
	}

	p.audit.LogLoginSuccess(tokenstore.ActorClient, account, ip)
	p.update(func(s *PortalState) {
		s.LoggingIn = false
		s.Authenticated = true
	})

	if err := p.FetchAccount(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Portal account fetch after login failed")
	}
	return nil
}

func (p *Portal) login(ctx context.Context, account string) error {
	tok, err := p.api.Login(ctx, account)
	if err != nil {
		return err
	}
	if tok.AccessToken == "" {
		return errors.New("panel returned an empty token")
	}
	if err := p.tokens.Set(ctx, tok.AccessToken); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	return nil
}

// Logout forgets the token and everything loaded with it.
func (p *Portal) Logout(ctx context.Context) error {
	account := ""
	p.mu.Lock()
	if p.state.Account != nil {
		account = p.state.Account.AccountNumber
	}
	p.mu.Unlock()

	err := p.tokens.Remove(ctx)
	p.update(func(s *PortalState) { *s = PortalState{} })
	p.audit.LogLogout(tokenstore.ActorClient, account, logging.ClientIPFromContext(ctx))
	if err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// Verify loads the account with the stored token. Without a token it fails
// with ErrNotAuthenticated and sends nothing.
func (p *Portal) Verify(ctx context.Context) (*models.Account, error) {
	if tok, err := p.tokens.Get(ctx); err != nil || tok == "" {
		p.update(func(s *PortalState) {
			s.Authenticated = false
			s.Account = nil
		})
		return nil, ErrNotAuthenticated
	}
	if err := p.FetchAccount(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Account, nil
}

// FetchAccount loads the signed-in account.
func (p *Portal) FetchAccount(ctx context.Context) error {
	account, err := p.api.Account(ctx)
	p.update(func(s *PortalState) {
		if err != nil {
			s.Error = errorText(err)
			if httpclient.IsUnauthorized(err) {
				s.Authenticated = false
				s.Account = nil
			}
			return
		}
		s.Authenticated = true
		s.Account = account
	})
	if err != nil {
		return fmt.Errorf("fetch portal account: %w", err)
	}
	return nil
}

// FetchPlans loads the purchasable plans.
func (p *Portal) FetchPlans(ctx context.Context) error {
	plans, err := p.api.Plans(ctx)
	p.update(func(s *PortalState) {
		if err != nil {
			s.Error = errorText(err)
			return
		}
		s.Plans = plans
	})
	if err != nil {
		return fmt.Errorf("fetch plans: %w", err)
	}
	return nil
}

// FetchServers loads the offered servers. A selection that no longer exists
// is dropped.
func (p *Portal) FetchServers(ctx context.Context) error {
	p.mu.Lock()
	gen := p.servers.issue()
	p.mu.Unlock()

	servers, err := p.api.Servers(ctx)

	p.mu.Lock()
	if !p.servers.current(gen) {
		p.mu.Unlock()
		metrics.StoreStaleResults.WithLabelValues(portalStore, "servers").Inc()
		return nil
	}
	if err != nil {
		p.state.Error = errorText(err)
	} else {
		p.state.Servers = servers
		if sel := p.state.Selection; sel != nil {
			if srv, ok := p.state.Server(sel.NodeID); !ok || !srv.HasService(sel.ServiceID) {
				p.state.Selection = nil
			}
		}
	}
	p.mu.Unlock()
	p.notify()

	if err != nil {
		return fmt.Errorf("fetch servers: %w", err)
	}
	return nil
}

// Select chooses the service whose config will be downloaded. The service
// must be one of the chosen node's services.
func (p *Portal) Select(nodeID, serviceID int) error {
	p.mu.Lock()
	srv, ok := p.state.Server(nodeID)
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("select node %d: %w", nodeID, panel.ErrInvalidNodeID)
	}
	if !srv.HasService(serviceID) {
		p.mu.Unlock()
		return fmt.Errorf("select service %d on node %d: %w", serviceID, nodeID, ErrUnknownService)
	}
	p.state.Selection = &Selection{NodeID: nodeID, ServiceID: serviceID}
	p.mu.Unlock()
	p.notify()
	return nil
}

// ClearSelection drops the selected service.
func (p *Portal) ClearSelection() {
	p.update(func(s *PortalState) { s.Selection = nil })
}

// Checkout starts a purchase and records where to pay.
func (p *Portal) Checkout(ctx context.Context, planID string) (*models.Checkout, error) {
	busy := false
	p.update(func(s *PortalState) {
		busy = s.CheckingOut
		s.CheckingOut = true
		s.Error = ""
		s.FieldErrors = nil
	})
	if busy {
		return nil, ErrBusy
	}

	checkout, err := p.api.Checkout(ctx, planID)
	metrics.RecordMutation(portalStore, "checkout", err)
	p.update(func(s *PortalState) {
		s.CheckingOut = false
		if err != nil {
			s.Error = errorText(err)
			s.FieldErrors = fieldErrors(err)
			return
		}
		s.Checkout = checkout
	})
	if err != nil {
		return nil, err
	}
	return checkout, nil
}

// DownloadConfig fetches the client config for the current selection.
func (p *Portal) DownloadConfig(ctx context.Context) (*models.Blob, error) {
	p.mu.Lock()
	sel := p.state.Selection
	p.mu.Unlock()
	if sel == nil {
		return nil, ErrNoSelection
	}

	blob, err := p.api.DownloadConfig(ctx, sel.NodeID, sel.ServiceID)
	if err != nil {
		p.update(func(s *PortalState) { s.Error = errorText(err) })
		return nil, err
	}
	return blob, nil
}

// HandleUnauthorized drops the portal token after the panel rejected it.
func (p *Portal) HandleUnauthorized(ctx context.Context) {
	if tok, err := p.tokens.Get(ctx); err == nil {
		p.audit.LogTokenRejected(tokenstore.ActorClient, tok)
	}
	if err := p.tokens.Remove(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to remove rejected portal token")
	}
	p.update(func(s *PortalState) {
		s.Authenticated = false
		s.Account = nil
		s.Checkout = nil
	})
}
