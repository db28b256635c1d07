// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package views

import (
	"net/http"
	"strconv"
)

// DefaultBreakpoint is the viewport width below which tables render compact
// rows.
const DefaultBreakpoint = 768

// Layout decides how tables are drawn for one request.
type Layout struct {
	Width      int
	Breakpoint int
}

// Compact reports whether rows collapse into accordions. An unknown width
// renders full rows.
func (l Layout) Compact() bool {
	bp := l.Breakpoint
	if bp <= 0 {
		bp = DefaultBreakpoint
	}
	return l.Width > 0 && l.Width < bp
}

// LayoutFromRequest reads the viewport width from the "width" query
// parameter, falling back to the Sec-CH-Viewport-Width client hint.
func LayoutFromRequest(r *http.Request, breakpoint int) Layout {
	l := Layout{Breakpoint: breakpoint}
	for _, raw := range []string{r.URL.Query().Get("width"), r.Header.Get("Sec-CH-Viewport-Width")} {
		if w, err := strconv.Atoi(raw); err == nil && w > 0 {
			l.Width = w
			break
		}
	}
	return l
}

// Dialog is the common part of every modal: it is shown exactly when its
// store slot holds an entity.
type Dialog struct {
	Open        bool
	Submitting  bool
	Error       string
	FieldErrors map[string]string
}

// FieldError returns the message for one form field.
func (d Dialog) FieldError(field string) string {
	return d.FieldErrors[field]
}

// HasFieldErrors reports whether the error belongs to individual fields.
func (d Dialog) HasFieldErrors() bool {
	return len(d.FieldErrors) > 0
}

// GeneralError is the error shown above the form. It is empty when the
// failure is already shown next to the fields.
func (d Dialog) GeneralError() string {
	if d.HasFieldErrors() {
		return ""
	}
	return d.Error
}

// Confirm is a two-step destructive action dialog.
type Confirm struct {
	Dialog
	Title   string
	Message string
	Action  string
	Cancel  string
}
