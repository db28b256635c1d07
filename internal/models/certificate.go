// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package models

import "time"

// CertificateInfo describes the panel CA or a node client certificate.
type CertificateInfo struct {
	Subject   string    `json:"subject"`
	Issuer    string    `json:"issuer"`
	Serial    string    `json:"serial"`
	NotBefore time.Time `json:"not_before"`
	NotAfter  time.Time `json:"not_after"`
}

// Expired reports whether the validity window has ended at now.
func (c CertificateInfo) Expired(now time.Time) bool {
	return !c.NotAfter.IsZero() && now.After(c.NotAfter)
}

// DaysRemaining is the number of whole days until NotAfter, never negative.
func (c CertificateInfo) DaysRemaining(now time.Time) int {
	if c.NotAfter.IsZero() || c.Expired(now) {
		return 0
	}
	return int(c.NotAfter.Sub(now) / (24 * time.Hour))
}

// NodeCertificate pairs a node id with its certificate.
type NodeCertificate struct {
	NodeID      int             `json:"node_id"`
	Certificate CertificateInfo `json:"certificate"`
}

// Blob is a downloaded file.
type Blob struct {
	Data        []byte
	ContentType string
	Filename    string
}
