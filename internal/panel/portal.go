// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package panel

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tomtom215/proxypanel/internal/httpclient"
	"github.com/tomtom215/proxypanel/internal/models"
)

// PortalAPI is the end-user side of the panel API.
type PortalAPI interface {
	Login(ctx context.Context, accountNumber string) (*models.TokenResponse, error)
	Account(ctx context.Context) (*models.Account, error)
	Plans(ctx context.Context) ([]models.Plan, error)
	Servers(ctx context.Context) ([]models.Server, error)
	Checkout(ctx context.Context, planID string) (*models.Checkout, error)
	DownloadConfig(ctx context.Context, nodeID, serviceID int) (*models.Blob, error)
}

// Ensure Portal implements PortalAPI
var _ PortalAPI = (*Portal)(nil)

// Portal calls the panel API as a subscriber.
type Portal struct {
	client *httpclient.Client
}

// NewPortal wraps a client bound to the client portal token storage.
func NewPortal(client *httpclient.Client) *Portal {
	return &Portal{client: client}
}

// Login authenticates with the account number alone, sent as the OAuth2
// password-grant username.
func (p *Portal) Login(ctx context.Context, accountNumber string) (*models.TokenResponse, error) {
	if !ValidAccountNumber(accountNumber) {
		return nil, ErrMissingAccountNumber
	}
	var out models.TokenResponse
	err := p.client.Post(ctx, "/token", nil, &out, httpclient.WithForm(map[string]string{
		"grant_type": "password",
		"username":   strings.TrimSpace(accountNumber),
	}))
	if err != nil {
		return nil, fmt.Errorf("portal login: %w", err)
	}
	return &out, nil
}

// Account returns the signed-in subscriber.
func (p *Portal) Account(ctx context.Context) (*models.Account, error) {
	var out models.Account
	if err := p.client.Get(ctx, "/client-portal/account", &out); err != nil {
		return nil, fmt.Errorf("portal account: %w", err)
	}
	return &out, nil
}

// Plans lists the purchasable plans.
func (p *Portal) Plans(ctx context.Context) ([]models.Plan, error) {
	var out []models.Plan
	if err := p.client.Get(ctx, "/client-portal/plans", &out); err != nil {
		return nil, fmt.Errorf("portal plans: %w", err)
	}
	return out, nil
}

// Servers lists the nodes and services offered to the subscriber.
func (p *Portal) Servers(ctx context.Context) ([]models.Server, error) {
	var out []models.Server
	if err := p.client.Get(ctx, "/client-portal/servers", &out); err != nil {
		return nil, fmt.Errorf("portal servers: %w", err)
	}
	return out, nil
}

// Checkout starts a purchase of planID and returns where to pay.
func (p *Portal) Checkout(ctx context.Context, planID string) (*models.Checkout, error) {
	if strings.TrimSpace(planID) == "" {
		return nil, fmt.Errorf("portal checkout: %w", &models.FieldError{Field: "plan_id", Message: "is required"})
	}
	var out models.Checkout
	if err := p.client.Post(ctx, "/client-portal/checkout", models.CheckoutRequest{PlanID: planID}, &out); err != nil {
		return nil, fmt.Errorf("portal checkout: %w", err)
	}
	return &out, nil
}

// DownloadConfig fetches the client configuration for one service of one
// node.
func (p *Portal) DownloadConfig(ctx context.Context, nodeID, serviceID int) (*models.Blob, error) {
	if nodeID <= 0 {
		return nil, ErrInvalidNodeID
	}
	if serviceID <= 0 {
		return nil, ErrInvalidServiceID
	}
	q := url.Values{}
	q.Set("node_id", strconv.Itoa(nodeID))
	q.Set("service_id", strconv.Itoa(serviceID))

	blob, err := p.client.Download(ctx, "/client-portal/config", httpclient.WithQuery(q))
	if err != nil {
		return nil, fmt.Errorf("portal config download: %w", err)
	}
	if blob.Filename == "" {
		blob.Filename = fmt.Sprintf("node-%d-service-%d.json", nodeID, serviceID)
	}
	return blob, nil
}
