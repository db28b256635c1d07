// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/proxypanel/internal/metrics"
	"github.com/tomtom215/proxypanel/internal/models"
	"github.com/tomtom215/proxypanel/internal/panel"
)

const certificatesStore = "certificates"

// CertificatesAPI is the part of the admin API the certificates store uses.
type CertificatesAPI interface {
	CAInfo(ctx context.Context) (*models.CertificateInfo, error)
	RegenerateCA(ctx context.Context) (*models.CertificateInfo, error)
	DownloadCA(ctx context.Context) (*models.Blob, error)
	NodeCertificate(ctx context.Context, nodeID int) (*models.NodeCertificate, error)
	RotateNodeCertificate(ctx context.Context, nodeID int) (*models.NodeCertificate, error)
}

// CertificatesState is a snapshot of the certificates store.
type CertificatesState struct {
	CA    *models.CertificateInfo        `json:"ca,omitempty"`
	Nodes map[int]models.CertificateInfo `json:"nodes"`
	Error string                         `json:"error,omitempty"`

	// RegenerateCA is the confirmation slot of the CA regeneration.
	RegenerateCA Slot[struct{}] `json:"regenerate_ca"`
	Rotating     map[int]bool   `json:"rotating,omitempty"`
}

// Certificates holds the panel CA and the per-node client certificates.
type Certificates struct {
	*observers

	api CertificatesAPI

	mu    sync.Mutex
	state CertificatesState
}

// NewCertificates builds the certificates store.
func NewCertificates(api CertificatesAPI) *Certificates {
	return &Certificates{
		observers: newObservers(certificatesStore),
		api:       api,
		state: CertificatesState{
			Nodes:    make(map[int]models.CertificateInfo),
			Rotating: make(map[int]bool),
		},
	}
}

// State returns a snapshot.
func (c *Certificates) State() CertificatesState {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	s.Nodes = copyMap(c.state.Nodes)
	s.Rotating = copyMap(c.state.Rotating)
	return s
}

func (c *Certificates) update(fn func(s *CertificatesState)) {
	c.mu.Lock()
	fn(&c.state)
	c.mu.Unlock()
	c.notify()
}

// FetchCA loads the CA certificate info.
func (c *Certificates) FetchCA(ctx context.Context) error {
	ca, err := c.api.CAInfo(ctx)
	c.update(func(s *CertificatesState) {
		if err != nil {
			s.Error = errorText(err)
			return
		}
		s.CA = ca
		s.Error = ""
	})
	if err != nil {
		return fmt.Errorf("fetch ca: %w", err)
	}
	return nil
}

// FetchNodeCertificate loads the client certificate info of nodeID.
func (c *Certificates) FetchNodeCertificate(ctx context.Context, nodeID int) error {
	if nodeID <= 0 {
		return panel.ErrInvalidNodeID
	}
	cert, err := c.api.NodeCertificate(ctx, nodeID)
	c.update(func(s *CertificatesState) {
		if err != nil {
			s.Error = errorText(err)
			return
		}
		s.Nodes[nodeID] = cert.Certificate
	})
	if err != nil {
		return fmt.Errorf("fetch node %d certificate: %w", nodeID, err)
	}
	return nil
}

// RequestRegenerateCA opens the regeneration confirmation.
func (c *Certificates) RequestRegenerateCA() {
	c.update(func(s *CertificatesState) { s.RegenerateCA.Select(struct{}{}) })
}

// CancelRegenerateCA closes the regeneration confirmation.
func (c *Certificates) CancelRegenerateCA() {
	c.update(func(s *CertificatesState) { s.RegenerateCA.Clear() })
}

// ConfirmRegenerateCA replaces the CA. Node certificates known so far were
// issued by the old CA and are dropped.
func (c *Certificates) ConfirmRegenerateCA(ctx context.Context) error {
	var ca *models.CertificateInfo
	err := submit(ctx, &c.mu, &c.state.RegenerateCA, c.observers, nil, func(ctx context.Context, _ struct{}) error {
		var err error
		ca, err = c.api.RegenerateCA(ctx)
		return err
	})
	metrics.RecordMutation(certificatesStore, "regenerate_ca", err)
	if err != nil {
		return err
	}
	c.update(func(s *CertificatesState) {
		s.CA = ca
		s.Nodes = make(map[int]models.CertificateInfo)
	})
	return nil
}

// RotateNodeCertificate issues a new client certificate for nodeID.
func (c *Certificates) RotateNodeCertificate(ctx context.Context, nodeID int) error {
	if nodeID <= 0 {
		return panel.ErrInvalidNodeID
	}
	busy := false
	c.update(func(s *CertificatesState) {
		busy = s.Rotating[nodeID]
		s.Rotating[nodeID] = true
	})
	if busy {
		return ErrBusy
	}

	cert, err := c.api.RotateNodeCertificate(ctx, nodeID)
	metrics.RecordMutation(certificatesStore, "rotate_node", err)
	c.update(func(s *CertificatesState) {
		delete(s.Rotating, nodeID)
		if err != nil {
			s.Error = errorText(err)
			return
		}
		s.Nodes[nodeID] = cert.Certificate
	})
	return err
}

// DownloadCA returns the CA certificate file.
func (c *Certificates) DownloadCA(ctx context.Context) (*models.Blob, error) {
	return c.api.DownloadCA(ctx)
}
