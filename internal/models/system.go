// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package models

import "time"

// SystemStats is the body of GET /system, shown in the dashboard header.
type SystemStats struct {
	Version           string  `json:"version"`
	MemTotal          int64   `json:"mem_total"`
	MemUsed           int64   `json:"mem_used"`
	CPUCores          int     `json:"cpu_cores"`
	CPUUsage          float64 `json:"cpu_usage"`
	TotalUser         int     `json:"total_user"`
	UsersActive       int     `json:"users_active"`
	UsersOnHold       int     `json:"users_on_hold"`
	UsersExpired      int     `json:"users_expired"`
	UsersLimited      int     `json:"users_limited"`
	UsersDisabled     int     `json:"users_disabled"`
	IncomingBandwidth int64   `json:"incoming_bandwidth"`
	OutgoingBandwidth int64   `json:"outgoing_bandwidth"`
}

// CoreInfo is the body of GET /core.
type CoreInfo struct {
	Version       string     `json:"version"`
	Started       bool       `json:"started"`
	LogsWebsocket string     `json:"logs_websocket"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
}
