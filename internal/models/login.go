// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package models

// AdminLoginForm is the dashboard sign-in form.
type AdminLoginForm struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

// PortalLoginForm is the client portal sign-in form. Subscribers sign in
// with their account number only.
type PortalLoginForm struct {
	AccountNumber string `json:"account_number" validate:"account"`
}
