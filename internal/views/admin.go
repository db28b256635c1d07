// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package views

import (
	"time"

	"github.com/tomtom215/proxypanel/internal/models"
	"github.com/tomtom215/proxypanel/internal/store"
)

// Nav is the page header.
type Nav struct {
	Section string
	User    string
	Portal  bool
}

// LoginPage is the sign-in form of the dashboard or the portal.
type LoginPage struct {
	Nav         Nav
	Action      string
	Username    string
	Error       string
	FieldErrors map[string]string
}

// FieldError returns the message for one form field.
func (p LoginPage) FieldError(field string) string {
	return p.FieldErrors[field]
}

// AdminLogin builds the dashboard sign-in page.
func AdminLogin(st store.SessionState, username string) LoginPage {
	return LoginPage{
		Nav:         Nav{Section: "login"},
		Action:      "/login",
		Username:    username,
		Error:       st.Error,
		FieldErrors: st.FieldErrors,
	}
}

// PortalLogin builds the portal sign-in page.
func PortalLogin(st store.PortalState, account string) LoginPage {
	return LoginPage{
		Nav:         Nav{Section: "login", Portal: true},
		Action:      "/portal/login",
		Username:    account,
		Error:       st.Error,
		FieldErrors: st.FieldErrors,
	}
}

// CorePage shows the proxy core, its configuration editor and live log.
type CorePage struct {
	Nav           Nav
	Version       string
	Running       bool
	StartedAt     string
	Draft         string
	Dirty         bool
	Saving        bool
	Restarting    bool
	Error         string
	Logs          []string
	LogsConnected bool
}

// Core builds the core page.
func Core(st store.CoreState, nav Nav) CorePage {
	page := CorePage{
		Nav:           nav,
		Draft:         string(st.Draft),
		Dirty:         st.Dirty,
		Saving:        st.Saving,
		Restarting:    st.Restarting,
		Error:         st.Error,
		Logs:          st.Logs,
		LogsConnected: st.LogsConnected,
	}
	if st.Info != nil {
		page.Version = st.Info.Version
		page.Running = st.Info.Started
		if st.Info.StartedAt != nil {
			page.StartedAt = st.Info.StartedAt.Format(time.RFC3339)
		}
	}
	return page
}

// CertificateRow is one certificate in the certificates page.
type CertificateRow struct {
	Label    string
	NodeID   int
	Subject  string
	Serial   string
	NotAfter time.Time
	DaysLeft int
	Expired  bool
	Rotating bool
}

// CertificatesPage shows the panel CA and node client certificates.
type CertificatesPage struct {
	Nav        Nav
	Error      string
	CA         *CertificateRow
	Nodes      []CertificateRow
	Regenerate Confirm
}

func certificateRow(label string, c models.CertificateInfo, now time.Time) CertificateRow {
	return CertificateRow{
		Label:    label,
		Subject:  c.Subject,
		Serial:   c.Serial,
		NotAfter: c.NotAfter,
		DaysLeft: c.DaysRemaining(now),
		Expired:  c.Expired(now),
	}
}

// Certificates builds the certificates page. nodes lists the known nodes so
// rows are labelled and ordered like the nodes table.
func Certificates(st store.CertificatesState, nodes []models.Node, nav Nav, now time.Time) CertificatesPage {
	page := CertificatesPage{
		Nav:   nav,
		Error: st.Error,
		Regenerate: Confirm{
			Dialog:  dialogOf(st.RegenerateCA),
			Title:   "Regenerate CA",
			Message: "Regenerating the CA invalidates every node certificate. Nodes must be given new certificates before they reconnect.",
			Action:  "/certificates/ca/regenerate/confirm",
			Cancel:  "/certificates/ca/regenerate/cancel",
		},
	}
	if st.CA != nil {
		row := certificateRow("Panel CA", *st.CA, now)
		page.CA = &row
	}
	for _, n := range nodes {
		cert, ok := st.Nodes[n.ID]
		row := CertificateRow{Label: n.Name, NodeID: n.ID}
		if ok {
			row = certificateRow(n.Name, cert, now)
			row.NodeID = n.ID
		}
		row.Rotating = st.Rotating[n.ID]
		page.Nodes = append(page.Nodes, row)
	}
	return page
}

// ErrorPage is shown when a page cannot be built.
type ErrorPage struct {
	Nav     Nav
	Status  int
	Message string
	Back    string
}
