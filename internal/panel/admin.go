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
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/proxypanel/internal/httpclient"
	"github.com/tomtom215/proxypanel/internal/models"
)

// AdminAPI is the administrative side of the panel API.
type AdminAPI interface {
	Login(ctx context.Context, username, password string) (*models.TokenResponse, error)
	CurrentAdmin(ctx context.Context) (*models.Admin, error)

	ListUsers(ctx context.Context, filter models.UserFilter) (*models.UsersResponse, error)
	GetUser(ctx context.Context, acct string) (*models.User, error)
	CreateUser(ctx context.Context, req models.UserRequest) (*models.User, error)
	ModifyUser(ctx context.Context, acct string, req models.UserRequest) (*models.User, error)
	DeleteUser(ctx context.Context, acct string) error
	UserUsage(ctx context.Context, acct string, start, end time.Time) (*models.UserUsage, error)
	ResetUserUsage(ctx context.Context, acct string) (*models.User, error)
	RevokeSubscription(ctx context.Context, acct string) (*models.User, error)
	SystemStats(ctx context.Context) (*models.SystemStats, error)

	ListNodes(ctx context.Context) ([]models.Node, error)
	CreateNode(ctx context.Context, req models.NodeRequest) (*models.Node, error)
	ModifyNode(ctx context.Context, id int, req models.NodeRequest) (*models.Node, error)
	DeleteNode(ctx context.Context, id int) error
	ReconnectNode(ctx context.Context, id int) error

	ListServices(ctx context.Context, nodeID int) ([]models.ServiceConfig, error)
	CreateService(ctx context.Context, nodeID int, req models.ServiceRequest) (*models.ServiceConfig, error)
	ModifyService(ctx context.Context, nodeID, serviceID int, req models.ServiceRequest) (*models.ServiceConfig, error)
	DeleteService(ctx context.Context, nodeID, serviceID int) error

	CoreInfo(ctx context.Context) (*models.CoreInfo, error)
	CoreConfig(ctx context.Context) (json.RawMessage, error)
	UpdateCoreConfig(ctx context.Context, raw json.RawMessage) error
	RestartCore(ctx context.Context) error

	CAInfo(ctx context.Context) (*models.CertificateInfo, error)
	RegenerateCA(ctx context.Context) (*models.CertificateInfo, error)
	DownloadCA(ctx context.Context) (*models.Blob, error)
	NodeCertificate(ctx context.Context, nodeID int) (*models.NodeCertificate, error)
	RotateNodeCertificate(ctx context.Context, nodeID int) (*models.NodeCertificate, error)
}

// Ensure Admin implements AdminAPI
var _ AdminAPI = (*Admin)(nil)

// Admin calls the panel API as an administrator.
type Admin struct {
	client *httpclient.Client
}

// NewAdmin wraps a client bound to the admin token storage.
func NewAdmin(client *httpclient.Client) *Admin {
	return &Admin{client: client}
}

// Login exchanges credentials for an admin token. The token is returned, not
// stored.
func (a *Admin) Login(ctx context.Context, username, password string) (*models.TokenResponse, error) {
	var out models.TokenResponse
	err := a.client.Post(ctx, "/admin/token", nil, &out, httpclient.WithForm(map[string]string{
		"grant_type": "password",
		"username":   username,
		"password":   password,
	}))
	if err != nil {
		return nil, fmt.Errorf("admin login: %w", err)
	}
	return &out, nil
}

// CurrentAdmin returns the admin behind the stored token. Routers use it as
// the session check.
func (a *Admin) CurrentAdmin(ctx context.Context) (*models.Admin, error) {
	var out models.Admin
	if err := a.client.Get(ctx, "/admin", &out); err != nil {
		return nil, fmt.Errorf("current admin: %w", err)
	}
	return &out, nil
}

// ListUsers fetches one page of users.
func (a *Admin) ListUsers(ctx context.Context, filter models.UserFilter) (*models.UsersResponse, error) {
	var out models.UsersResponse
	if err := a.client.Get(ctx, "/users", &out, httpclient.WithQuery(filter.Query())); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return &out, nil
}

// GetUser fetches one user by account number.
func (a *Admin) GetUser(ctx context.Context, acct string) (*models.User, error) {
	path, err := userPath(acct, "")
	if err != nil {
		return nil, err
	}
	var out models.User
	if err := a.client.Get(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &out, nil
}

// CreateUser creates a user and returns it as stored by the panel.
func (a *Admin) CreateUser(ctx context.Context, req models.UserRequest) (*models.User, error) {
	var out models.User
	if err := a.client.Post(ctx, "/user", req, &out); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &out, nil
}

// ModifyUser replaces the editable fields of a user.
func (a *Admin) ModifyUser(ctx context.Context, acct string, req models.UserRequest) (*models.User, error) {
	path, err := userPath(acct, "")
	if err != nil {
		return nil, err
	}
	var out models.User
	if err := a.client.Put(ctx, path, req, &out); err != nil {
		return nil, fmt.Errorf("modify user: %w", err)
	}
	return &out, nil
}

// DeleteUser removes a user.
func (a *Admin) DeleteUser(ctx context.Context, acct string) error {
	path, err := userPath(acct, "")
	if err != nil {
		return err
	}
	if err := a.client.Delete(ctx, path, nil); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// UserUsage returns per-node traffic of a user. Zero start or end leaves the
// bound to the panel.
func (a *Admin) UserUsage(ctx context.Context, acct string, start, end time.Time) (*models.UserUsage, error) {
	path, err := userPath(acct, "/usage")
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if !start.IsZero() {
		q.Set("start", start.UTC().Format(time.RFC3339))
	}
	if !end.IsZero() {
		q.Set("end", end.UTC().Format(time.RFC3339))
	}
	var out models.UserUsage
	if err := a.client.Get(ctx, path, &out, httpclient.WithQuery(q)); err != nil {
		return nil, fmt.Errorf("user usage: %w", err)
	}
	return &out, nil
}

// ResetUserUsage zeroes the used traffic of a user.
func (a *Admin) ResetUserUsage(ctx context.Context, acct string) (*models.User, error) {
	path, err := userPath(acct, "/reset")
	if err != nil {
		return nil, err
	}
	var out models.User
	if err := a.client.Post(ctx, path, nil, &out); err != nil {
		return nil, fmt.Errorf("reset user usage: %w", err)
	}
	return &out, nil
}

// RevokeSubscription rotates the subscription link of a user. The panel
// normally answers with the updated user.
func (a *Admin) RevokeSubscription(ctx context.Context, acct string) (*models.User, error) {
	path, err := userPath(acct, "/revoke_sub")
	if err != nil {
		return nil, err
	}
	var out models.User
	if err := a.client.Post(ctx, path, nil, &out); err != nil {
		return nil, fmt.Errorf("revoke subscription: %w", err)
	}
	return &out, nil
}

// SystemStats returns panel-wide user and traffic counters.
func (a *Admin) SystemStats(ctx context.Context) (*models.SystemStats, error) {
	var out models.SystemStats
	if err := a.client.Get(ctx, "/system", &out); err != nil {
		return nil, fmt.Errorf("system stats: %w", err)
	}
	return &out, nil
}

// ListNodes returns every node.
func (a *Admin) ListNodes(ctx context.Context) ([]models.Node, error) {
	var out []models.Node
	if err := a.client.Get(ctx, "/nodes", &out); err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return out, nil
}

// CreateNode registers a node.
func (a *Admin) CreateNode(ctx context.Context, req models.NodeRequest) (*models.Node, error) {
	var out models.Node
	if err := a.client.Post(ctx, "/node", req, &out); err != nil {
		return nil, fmt.Errorf("create node: %w", err)
	}
	return &out, nil
}

// ModifyNode updates a node.
func (a *Admin) ModifyNode(ctx context.Context, id int, req models.NodeRequest) (*models.Node, error) {
	path, err := nodePath(id, "")
	if err != nil {
		return nil, err
	}
	var out models.Node
	if err := a.client.Put(ctx, path, req, &out); err != nil {
		return nil, fmt.Errorf("modify node: %w", err)
	}
	return &out, nil
}

// DeleteNode removes a node.
func (a *Admin) DeleteNode(ctx context.Context, id int) error {
	path, err := nodePath(id, "")
	if err != nil {
		return err
	}
	if err := a.client.Delete(ctx, path, nil); err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	return nil
}

// ReconnectNode asks the panel to reconnect to a node.
func (a *Admin) ReconnectNode(ctx context.Context, id int) error {
	path, err := nodePath(id, "/reconnect")
	if err != nil {
		return err
	}
	if err := a.client.Post(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("reconnect node: %w", err)
	}
	return nil
}

// ListServices returns the inbounds of one node. The ids are only unique
// within that node.
func (a *Admin) ListServices(ctx context.Context, nodeID int) ([]models.ServiceConfig, error) {
	path, err := nodePath(nodeID, "/services")
	if err != nil {
		return nil, err
	}
	var out []models.ServiceConfig
	if err := a.client.Get(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return out, nil
}

// CreateService adds an inbound to a node.
func (a *Admin) CreateService(ctx context.Context, nodeID int, req models.ServiceRequest) (*models.ServiceConfig, error) {
	path, err := nodePath(nodeID, "/service")
	if err != nil {
		return nil, err
	}
	req.NodeID = nodeID
	var out models.ServiceConfig
	if err := a.client.Post(ctx, path, req, &out); err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	return &out, nil
}

// ModifyService updates one inbound of a node.
func (a *Admin) ModifyService(ctx context.Context, nodeID, serviceID int, req models.ServiceRequest) (*models.ServiceConfig, error) {
	path, err := servicePath(nodeID, serviceID)
	if err != nil {
		return nil, err
	}
	req.NodeID = nodeID
	req.ID = serviceID
	var out models.ServiceConfig
	if err := a.client.Put(ctx, path, req, &out); err != nil {
		return nil, fmt.Errorf("modify service: %w", err)
	}
	return &out, nil
}

// DeleteService removes one inbound of a node.
func (a *Admin) DeleteService(ctx context.Context, nodeID, serviceID int) error {
	path, err := servicePath(nodeID, serviceID)
	if err != nil {
		return err
	}
	if err := a.client.Delete(ctx, path, nil); err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	return nil
}

// CoreInfo returns the proxy core version, state and log stream path.
func (a *Admin) CoreInfo(ctx context.Context) (*models.CoreInfo, error) {
	var out models.CoreInfo
	if err := a.client.Get(ctx, "/core", &out); err != nil {
		return nil, fmt.Errorf("core info: %w", err)
	}
	return &out, nil
}

// CoreConfig returns the proxy core configuration document as-is.
func (a *Admin) CoreConfig(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := a.client.Get(ctx, "/core/config", &out); err != nil {
		return nil, fmt.Errorf("core config: %w", err)
	}
	return out, nil
}

// UpdateCoreConfig replaces the proxy core configuration document.
func (a *Admin) UpdateCoreConfig(ctx context.Context, raw json.RawMessage) error {
	if !json.Valid(raw) {
		return fmt.Errorf("update core config: %w", &models.FieldError{Field: "config", Message: "must be valid JSON"})
	}
	if err := a.client.Put(ctx, "/core/config", raw, nil); err != nil {
		return fmt.Errorf("update core config: %w", err)
	}
	return nil
}

// RestartCore restarts the proxy core.
func (a *Admin) RestartCore(ctx context.Context) error {
	if err := a.client.Post(ctx, "/core/restart", nil, nil); err != nil {
		return fmt.Errorf("restart core: %w", err)
	}
	return nil
}

// CAInfo describes the panel CA certificate.
func (a *Admin) CAInfo(ctx context.Context) (*models.CertificateInfo, error) {
	var out models.CertificateInfo
	if err := a.client.Get(ctx, "/admin/certificates/ca", &out); err != nil {
		return nil, fmt.Errorf("ca info: %w", err)
	}
	return &out, nil
}

// RegenerateCA replaces the panel CA. Every node certificate signed by the old
// CA stops validating until rotated.
func (a *Admin) RegenerateCA(ctx context.Context) (*models.CertificateInfo, error) {
	var out models.CertificateInfo
	if err := a.client.Post(ctx, "/admin/certificates/ca/regenerate", nil, &out); err != nil {
		return nil, fmt.Errorf("regenerate ca: %w", err)
	}
	return &out, nil
}

// DownloadCA returns the CA certificate in PEM form.
func (a *Admin) DownloadCA(ctx context.Context) (*models.Blob, error) {
	blob, err := a.client.Download(ctx, "/admin/certificates/ca/download")
	if err != nil {
		return nil, fmt.Errorf("download ca: %w", err)
	}
	if blob.Filename == "" {
		blob.Filename = "ca.pem"
	}
	return blob, nil
}

// NodeCertificate describes the client certificate issued to a node.
func (a *Admin) NodeCertificate(ctx context.Context, nodeID int) (*models.NodeCertificate, error) {
	if nodeID <= 0 {
		return nil, ErrInvalidNodeID
	}
	var out models.NodeCertificate
	if err := a.client.Get(ctx, "/admin/certificates/nodes/"+strconv.Itoa(nodeID), &out); err != nil {
		return nil, fmt.Errorf("node certificate: %w", err)
	}
	if out.NodeID == 0 {
		out.NodeID = nodeID
	}
	return &out, nil
}

// RotateNodeCertificate issues a new client certificate for a node.
func (a *Admin) RotateNodeCertificate(ctx context.Context, nodeID int) (*models.NodeCertificate, error) {
	if nodeID <= 0 {
		return nil, ErrInvalidNodeID
	}
	var out models.NodeCertificate
	if err := a.client.Post(ctx, "/admin/certificates/nodes/"+strconv.Itoa(nodeID)+"/rotate", nil, &out); err != nil {
		return nil, fmt.Errorf("rotate node certificate: %w", err)
	}
	if out.NodeID == 0 {
		out.NodeID = nodeID
	}
	return &out, nil
}
