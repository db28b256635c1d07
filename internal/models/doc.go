// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

// Package models defines the panel API entities (users, nodes, services,
// certificates, portal plans) and the dashboard response envelope.
//
// Unlimited data limits and unset expiry are represented as OptionalBytes and
// OptionalTime with Valid=false. The panel sends either null or 0 for these;
// both decode to unset, and unset is always sent back as 0.
package models
