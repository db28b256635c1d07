// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// ProtocolSettings is the protocol specific "settings" block of a service.
// Known protocols decode into their own type; anything else is kept as
// OpaqueSettings so it round-trips untouched.
type ProtocolSettings interface {
	Protocol() string
}

// Fallback routes unmatched traffic of a vless/trojan inbound.
type Fallback struct {
	Name string `json:"name,omitempty"`
	Alpn string `json:"alpn,omitempty"`
	Path string `json:"path,omitempty"`
	Dest string `json:"dest"`
	Xver int    `json:"xver,omitempty"`
}

type VLESSSettings struct {
	Decryption string     `json:"decryption,omitempty"`
	Flow       string     `json:"flow,omitempty"`
	Fallbacks  []Fallback `json:"fallbacks,omitempty"`
}

func (VLESSSettings) Protocol() string { return ProtocolVLESS }

type VMessSettings struct {
	DisableInsecureEncryption bool `json:"disableInsecureEncryption,omitempty"`
}

func (VMessSettings) Protocol() string { return ProtocolVMess }

type TrojanSettings struct {
	Fallbacks []Fallback `json:"fallbacks,omitempty"`
}

func (TrojanSettings) Protocol() string { return ProtocolTrojan }

type ShadowsocksSettings struct {
	Method  string `json:"method,omitempty"`
	Network string `json:"network,omitempty"`
}

func (ShadowsocksSettings) Protocol() string { return ProtocolShadowsocks }

// OpaqueSettings preserves settings of protocols this build does not model.
type OpaqueSettings struct {
	Name   string
	Fields map[string]json.RawMessage
}

func (o OpaqueSettings) Protocol() string { return o.Name }

// MarshalJSON writes Fields back verbatim.
func (o OpaqueSettings) MarshalJSON() ([]byte, error) {
	if o.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(o.Fields)
}

// StreamSettings is the transport block.
type StreamSettings struct {
	Network             string                     `json:"network,omitempty"`
	AcceptProxyProtocol bool                       `json:"acceptProxyProtocol,omitempty"`
	Path                string                     `json:"path,omitempty"`
	Host                []string                   `json:"host,omitempty"`
	ServiceName         string                     `json:"serviceName,omitempty"`
	HeaderType          string                     `json:"headerType,omitempty"`
	Extra               map[string]json.RawMessage `json:"extra,omitempty"`
}

type TLSSettings struct {
	ServerName    string   `json:"serverName,omitempty"`
	ALPN          []string `json:"alpn,omitempty"`
	Fingerprint   string   `json:"fingerprint,omitempty"`
	AllowInsecure bool     `json:"allowInsecure,omitempty"`
	RejectUnknown bool     `json:"rejectUnknownSni,omitempty"`
}

type RealitySettings struct {
	Show        bool     `json:"show,omitempty"`
	Dest        string   `json:"dest"`
	Xver        int      `json:"xver,omitempty"`
	ServerNames []string `json:"serverNames"`
	PrivateKey  string   `json:"privateKey"`
	PublicKey   string   `json:"publicKey,omitempty"`
	ShortIDs    []string `json:"shortIds"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	SpiderX     string   `json:"spiderX,omitempty"`
}

type SniffingSettings struct {
	Enabled      bool     `json:"enabled"`
	DestOverride []string `json:"destOverride,omitempty"`
	RouteOnly    bool     `json:"routeOnly,omitempty"`
}

// ServiceConfig is an inbound running on one node. Its id is only meaningful
// together with NodeID.
type ServiceConfig struct {
	ID       int               `json:"id"`
	NodeID   int               `json:"node_id"`
	Tag      string            `json:"tag"`
	Protocol string            `json:"protocol"`
	Network  string            `json:"network"`
	Security string            `json:"security"`
	Port     int               `json:"port"`
	Stream   *StreamSettings   `json:"stream,omitempty"`
	TLS      *TLSSettings      `json:"tls,omitempty"`
	Reality  *RealitySettings  `json:"reality,omitempty"`
	Sniffing *SniffingSettings `json:"sniffing,omitempty"`

	// Settings is the protocol block, decoded by Protocol.
	Settings ProtocolSettings `json:"-"`

	// Extra holds top-level blocks the panel sent that are not modelled above.
	Extra map[string]json.RawMessage `json:"-"`
}

type serviceFields ServiceConfig

var knownServiceKeys = map[string]bool{
	"id": true, "node_id": true, "tag": true, "protocol": true, "network": true,
	"security": true, "port": true, "stream": true, "tls": true, "reality": true,
	"sniffing": true, "settings": true,
}

// UnmarshalJSON decodes typed blocks and keeps everything else in Extra.
func (s *ServiceConfig) UnmarshalJSON(data []byte) error {
	var fields serviceFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	settings, err := DecodeProtocolSettings(fields.Protocol, raw["settings"])
	if err != nil {
		return err
	}
	fields.Settings = settings

	for key, value := range raw {
		if knownServiceKeys[key] {
			continue
		}
		if fields.Extra == nil {
			fields.Extra = make(map[string]json.RawMessage)
		}
		fields.Extra[key] = value
	}

	*s = ServiceConfig(fields)
	return nil
}

// MarshalJSON writes typed blocks, the protocol settings and Extra.
func (s ServiceConfig) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(serviceFields(s))
	if err != nil {
		return nil, err
	}
	if s.Settings == nil && len(s.Extra) == 0 {
		return base, nil
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(base, &out); err != nil {
		return nil, err
	}
	for key, value := range s.Extra {
		if !knownServiceKeys[key] {
			out[key] = value
		}
	}
	if s.Settings != nil {
		settings, err := json.Marshal(s.Settings)
		if err != nil {
			return nil, fmt.Errorf("encode %s settings: %w", s.Protocol, err)
		}
		out["settings"] = settings
	}
	return json.Marshal(out)
}

// DecodeProtocolSettings decodes raw into the settings type for protocol.
// A block that does not fit the typed shape is kept as OpaqueSettings.
func DecodeProtocolSettings(protocol string, raw json.RawMessage) (ProtocolSettings, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var typed ProtocolSettings
	var err error
	switch protocol {
	case ProtocolVLESS:
		var v VLESSSettings
		err = json.Unmarshal(raw, &v)
		typed = v
	case ProtocolVMess:
		var v VMessSettings
		err = json.Unmarshal(raw, &v)
		typed = v
	case ProtocolTrojan:
		var v TrojanSettings
		err = json.Unmarshal(raw, &v)
		typed = v
	case ProtocolShadowsocks:
		var v ShadowsocksSettings
		err = json.Unmarshal(raw, &v)
		typed = v
	default:
		err = errUnknownProtocol
	}
	if err == nil {
		return typed, nil
	}

	var fields map[string]json.RawMessage
	if jerr := json.Unmarshal(raw, &fields); jerr != nil {
		return nil, fmt.Errorf("decode %s settings: %w", protocol, jerr)
	}
	return OpaqueSettings{Name: protocol, Fields: fields}, nil
}

var errUnknownProtocol = errors.New("unknown protocol")

// ServiceRequest is the body of POST /node/{id}/service and PUT /node/{id}/service/{sid}.
type ServiceRequest = ServiceConfig

// ServiceForm is the service dialog input. Advanced holds the free-form JSON
// blocks (settings, stream, tls, reality, sniffing) as typed by the admin.
type ServiceForm struct {
	Tag      string `json:"tag" validate:"required,max=64"`
	Protocol string `json:"protocol" validate:"required,oneof=vless vmess trojan shadowsocks"`
	Network  string `json:"network" validate:"required,oneof=tcp ws grpc http httpupgrade kcp quic xhttp"`
	Security string `json:"security" validate:"oneof=none tls reality"`
	Port     int    `json:"port" validate:"gte=1,lte=65535"`
	Advanced string `json:"advanced"`
}

// Config builds the service for nodeID, merging the advanced JSON object.
func (f ServiceForm) Config(nodeID int) (ServiceConfig, error) {
	var cfg ServiceConfig
	if adv := strings.TrimSpace(f.Advanced); adv != "" {
		if err := json.Unmarshal([]byte(adv), &cfg); err != nil {
			return ServiceConfig{}, &FieldError{Field: "advanced", Message: "advanced settings must be a JSON object: " + err.Error()}
		}
	}
	cfg.NodeID = nodeID
	cfg.Tag = f.Tag
	cfg.Protocol = f.Protocol
	cfg.Network = f.Network
	cfg.Security = f.Security
	cfg.Port = f.Port

	// The advanced block was decoded before the protocol was known.
	if cfg.Settings != nil && cfg.Settings.Protocol() != f.Protocol {
		raw, err := json.Marshal(cfg.Settings)
		if err != nil {
			return ServiceConfig{}, err
		}
		if cfg.Settings, err = DecodeProtocolSettings(f.Protocol, raw); err != nil {
			return ServiceConfig{}, &FieldError{Field: "advanced", Message: err.Error()}
		}
	}
	return cfg, nil
}

// ExtraKeys lists the preserved unknown blocks in a stable order.
func (s ServiceConfig) ExtraKeys() []string {
	keys := make([]string, 0, len(s.Extra))
	for k := range s.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FieldError is a conversion failure tied to one form field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}
