// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/proxypanel/internal/httpclient"
	"github.com/tomtom215/proxypanel/internal/models"
	"github.com/tomtom215/proxypanel/internal/tokenstore"
)

// fakeAdmin records calls and answers from its hook fields. Unset hooks
// succeed with zero values.
type fakeAdmin struct {
	mu    sync.Mutex
	calls map[string]int

	listUsers    func(filter models.UserFilter) (*models.UsersResponse, error)
	createUser   func(req models.UserRequest) (*models.User, error)
	modifyUser   func(acct string, req models.UserRequest) (*models.User, error)
	deleteUser   func(acct string) error
	userUsage    func(acct string, start, end time.Time) (*models.UserUsage, error)
	revokeSub    func(acct string) (*models.User, error)
	systemStats  func() (*models.SystemStats, error)
	listNodes    func() ([]models.Node, error)
	modifyNode   func(id int, req models.NodeRequest) (*models.Node, error)
	deleteNode   func(id int) error
	listServices func(nodeID int) ([]models.ServiceConfig, error)
	saveService  func(nodeID, serviceID int, req models.ServiceRequest) error
	coreConfig   func() (json.RawMessage, error)
	updateConfig func(raw json.RawMessage) error
	regenerateCA func() (*models.CertificateInfo, error)
	login        func(username, password string) (*models.TokenResponse, error)
	currentAdmin func() (*models.Admin, error)
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{calls: make(map[string]int)}
}

func (f *fakeAdmin) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeAdmin) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAdmin) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeAdmin) ListUsers(_ context.Context, filter models.UserFilter) (*models.UsersResponse, error) {
	f.record("ListUsers")
	if f.listUsers != nil {
		return f.listUsers(filter)
	}
	return &models.UsersResponse{}, nil
}

func (f *fakeAdmin) CreateUser(_ context.Context, req models.UserRequest) (*models.User, error) {
	f.record("CreateUser")
	if f.createUser != nil {
		return f.createUser(req)
	}
	return &models.User{}, nil
}

func (f *fakeAdmin) ModifyUser(_ context.Context, acct string, req models.UserRequest) (*models.User, error) {
	f.record("ModifyUser")
	if f.modifyUser != nil {
		return f.modifyUser(acct, req)
	}
	return &models.User{AccountNumber: acct}, nil
}

func (f *fakeAdmin) DeleteUser(_ context.Context, acct string) error {
	f.record("DeleteUser")
	if f.deleteUser != nil {
		return f.deleteUser(acct)
	}
	return nil
}

func (f *fakeAdmin) UserUsage(_ context.Context, acct string, start, end time.Time) (*models.UserUsage, error) {
	f.record("UserUsage")
	if f.userUsage != nil {
		return f.userUsage(acct, start, end)
	}
	return &models.UserUsage{AccountNumber: acct}, nil
}

func (f *fakeAdmin) ResetUserUsage(_ context.Context, acct string) (*models.User, error) {
	f.record("ResetUserUsage")
	return &models.User{AccountNumber: acct}, nil
}

func (f *fakeAdmin) RevokeSubscription(_ context.Context, acct string) (*models.User, error) {
	f.record("RevokeSubscription")
	if f.revokeSub != nil {
		return f.revokeSub(acct)
	}
	return nil, nil
}

func (f *fakeAdmin) SystemStats(_ context.Context) (*models.SystemStats, error) {
	f.record("SystemStats")
	if f.systemStats != nil {
		return f.systemStats()
	}
	return &models.SystemStats{}, nil
}

func (f *fakeAdmin) ListNodes(_ context.Context) ([]models.Node, error) {
	f.record("ListNodes")
	if f.listNodes != nil {
		return f.listNodes()
	}
	return nil, nil
}

func (f *fakeAdmin) CreateNode(_ context.Context, req models.NodeRequest) (*models.Node, error) {
	f.record("CreateNode")
	return &models.Node{ID: 99, Name: req.Name}, nil
}

func (f *fakeAdmin) ModifyNode(_ context.Context, id int, req models.NodeRequest) (*models.Node, error) {
	f.record("ModifyNode")
	if f.modifyNode != nil {
		return f.modifyNode(id, req)
	}
	return &models.Node{ID: id, Name: req.Name}, nil
}

func (f *fakeAdmin) DeleteNode(_ context.Context, id int) error {
	f.record("DeleteNode")
	if f.deleteNode != nil {
		return f.deleteNode(id)
	}
	return nil
}

func (f *fakeAdmin) ReconnectNode(_ context.Context, _ int) error {
	f.record("ReconnectNode")
	return nil
}

func (f *fakeAdmin) ListServices(_ context.Context, nodeID int) ([]models.ServiceConfig, error) {
	f.record("ListServices")
	if f.listServices != nil {
		return f.listServices(nodeID)
	}
	return nil, nil
}

func (f *fakeAdmin) CreateService(_ context.Context, nodeID int, req models.ServiceRequest) (*models.ServiceConfig, error) {
	f.record("CreateService")
	if f.saveService != nil {
		if err := f.saveService(nodeID, 0, req); err != nil {
			return nil, err
		}
	}
	return &req, nil
}

func (f *fakeAdmin) ModifyService(_ context.Context, nodeID, serviceID int, req models.ServiceRequest) (*models.ServiceConfig, error) {
	f.record("ModifyService")
	if f.saveService != nil {
		if err := f.saveService(nodeID, serviceID, req); err != nil {
			return nil, err
		}
	}
	return &req, nil
}

func (f *fakeAdmin) DeleteService(_ context.Context, _, _ int) error {
	f.record("DeleteService")
	return nil
}

func (f *fakeAdmin) CoreInfo(_ context.Context) (*models.CoreInfo, error) {
	f.record("CoreInfo")
	return &models.CoreInfo{Version: "1.8.4", Started: true}, nil
}

func (f *fakeAdmin) CoreConfig(_ context.Context) (json.RawMessage, error) {
	f.record("CoreConfig")
	if f.coreConfig != nil {
		return f.coreConfig()
	}
	return json.RawMessage(`{"log":{"loglevel":"warning"}}`), nil
}

func (f *fakeAdmin) UpdateCoreConfig(_ context.Context, raw json.RawMessage) error {
	f.record("UpdateCoreConfig")
	if f.updateConfig != nil {
		return f.updateConfig(raw)
	}
	return nil
}

func (f *fakeAdmin) RestartCore(_ context.Context) error {
	f.record("RestartCore")
	return nil
}

func (f *fakeAdmin) CAInfo(_ context.Context) (*models.CertificateInfo, error) {
	f.record("CAInfo")
	return &models.CertificateInfo{Subject: "CN=ProxyPanel CA"}, nil
}

func (f *fakeAdmin) RegenerateCA(_ context.Context) (*models.CertificateInfo, error) {
	f.record("RegenerateCA")
	if f.regenerateCA != nil {
		return f.regenerateCA()
	}
	return &models.CertificateInfo{Subject: "CN=ProxyPanel CA", Serial: "02"}, nil
}

func (f *fakeAdmin) DownloadCA(_ context.Context) (*models.Blob, error) {
	f.record("DownloadCA")
	return &models.Blob{Data: []byte("pem"), Filename: "ca.pem"}, nil
}

func (f *fakeAdmin) NodeCertificate(_ context.Context, nodeID int) (*models.NodeCertificate, error) {
	f.record("NodeCertificate")
	return &models.NodeCertificate{NodeID: nodeID, Certificate: models.CertificateInfo{Serial: "01"}}, nil
}

func (f *fakeAdmin) RotateNodeCertificate(_ context.Context, nodeID int) (*models.NodeCertificate, error) {
	f.record("RotateNodeCertificate")
	return &models.NodeCertificate{NodeID: nodeID, Certificate: models.CertificateInfo{Serial: "02"}}, nil
}

func (f *fakeAdmin) Login(_ context.Context, username, password string) (*models.TokenResponse, error) {
	f.record("Login")
	if f.login != nil {
		return f.login(username, password)
	}
	return &models.TokenResponse{AccessToken: "admin-token", TokenType: "bearer"}, nil
}

func (f *fakeAdmin) CurrentAdmin(_ context.Context) (*models.Admin, error) {
	f.record("CurrentAdmin")
	if f.currentAdmin != nil {
		return f.currentAdmin()
	}
	return &models.Admin{Username: "root", IsSudo: true}, nil
}

var (
	_ UsersAPI        = (*fakeAdmin)(nil)
	_ NodesAPI        = (*fakeAdmin)(nil)
	_ CoreAPI         = (*fakeAdmin)(nil)
	_ CertificatesAPI = (*fakeAdmin)(nil)
	_ AdminSessionAPI = (*fakeAdmin)(nil)
)

func apiError(status int, detail string) error {
	return &httpclient.APIError{StatusCode: status, Method: "POST", Path: "/test", Detail: detail}
}

func memoryTokens(t *testing.T, actor string) *tokenstore.TokenStorage {
	t.Helper()
	backend := tokenstore.NewMemoryBackend()
	if actor == tokenstore.ActorClient {
		return tokenstore.ClientPortal(backend)
	}
	return tokenstore.Admin(backend)
}

// countNotifications subscribes to obs and returns a counter.
func countNotifications(t *testing.T, subscribe func(func()) func()) func() int {
	t.Helper()
	var mu sync.Mutex
	n := 0
	unsubscribe := subscribe(func() {
		mu.Lock()
		n++
		mu.Unlock()
	})
	t.Cleanup(unsubscribe)
	return func() int {
		mu.Lock()
		defer mu.Unlock()
		return n
	}
}
