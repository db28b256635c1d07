// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package models

// NodeStatus is the connection state of a node as seen by the panel.
type NodeStatus string

const (
	NodeStatusConnecting NodeStatus = "connecting"
	NodeStatusConnected  NodeStatus = "connected"
	NodeStatusError      NodeStatus = "error"
	NodeStatusDisabled   NodeStatus = "disabled"
)

// Node is a proxy server managed by the panel. Client certificate material is
// write-only and never returned.
type Node struct {
	ID               int             `json:"id"`
	Name             string          `json:"name"`
	Address          string          `json:"address"`
	Port             int             `json:"port"`
	APIPort          int             `json:"api_port"`
	UsageCoefficient float64         `json:"usage_coefficient"`
	Status           NodeStatus      `json:"status"`
	Message          string          `json:"message,omitempty"`
	XrayVersion      string          `json:"xray_version,omitempty"`
	Services         []ServiceConfig `json:"services,omitempty"`
}

// NodeRequest is the body of POST /node and PUT /node/{id}.
type NodeRequest struct {
	Name             string     `json:"name"`
	Address          string     `json:"address"`
	Port             int        `json:"port"`
	APIPort          int        `json:"api_port"`
	UsageCoefficient float64    `json:"usage_coefficient"`
	Status           NodeStatus `json:"status,omitempty"`
	ClientCert       string     `json:"client_cert,omitempty"`
	ClientKey        string     `json:"client_key,omitempty"`
}

// NodeForm is the node dialog input.
type NodeForm struct {
	Name             string  `json:"name" validate:"required,max=64"`
	Address          string  `json:"address" validate:"required,hostname|ip"`
	Port             int     `json:"port" validate:"gte=1,lte=65535"`
	APIPort          int     `json:"api_port" validate:"gte=1,lte=65535"`
	UsageCoefficient float64 `json:"usage_coefficient" validate:"gt=0"`
	Disabled         bool    `json:"disabled"`
	ClientCert       string  `json:"client_cert" validate:"omitempty,pem"`
	ClientKey        string  `json:"client_key" validate:"required_with=ClientCert,omitempty,pem"`
}

// Request converts the form into the API body.
func (f NodeForm) Request() NodeRequest {
	req := NodeRequest{
		Name:             f.Name,
		Address:          f.Address,
		Port:             f.Port,
		APIPort:          f.APIPort,
		UsageCoefficient: f.UsageCoefficient,
		ClientCert:       f.ClientCert,
		ClientKey:        f.ClientKey,
	}
	if f.Disabled {
		req.Status = NodeStatusDisabled
	}
	return req
}

// ServiceOf returns the service with id sid if it belongs to this node.
func (n Node) ServiceOf(sid int) (ServiceConfig, bool) {
	for _, s := range n.Services {
		if s.ID == sid {
			return s, true
		}
	}
	return ServiceConfig{}, false
}
