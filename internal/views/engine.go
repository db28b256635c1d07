// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

// Package views turns store snapshots into view models and renders them.
//
// engine.go - Page Template Engine
//
// Pages are html/template files embedded from templates/. Every page is
// parsed together with layout.html.tmpl and executed through its "layout"
// template, so pages only define "title" and "content". Every POST form
// carries a hidden csrf_token field filled from the token passed to Render.
//
// Security:
//   - All panel supplied text is HTML-escaped by html/template
//   - No template function returns template.HTML
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tomtom215/proxypanel/internal/models"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

// Page names accepted by Engine.Render.
const (
	PageLogin        = "login"
	PageDashboard    = "dashboard"
	PageNodes        = "nodes"
	PageCore         = "core"
	PageCertificates = "certificates"
	PagePortalLogin  = "portal_login"
	PagePortal       = "portal"
	PageError        = "error"
)

var pages = []string{
	PageLogin, PageDashboard, PageNodes, PageCore, PageCertificates,
	PagePortalLogin, PagePortal, PageError,
}

// Engine renders pages.
type Engine struct {
	funcMap   template.FuncMap
	templates map[string]*template.Template
}

// NewEngine parses all embedded pages.
func NewEngine() (*Engine, error) {
	e := &Engine{templates: make(map[string]*template.Template, len(pages))}
	e.funcMap = e.buildFuncMap()

	for _, name := range pages {
		tmpl, err := template.New(name).Funcs(e.funcMap).ParseFS(templateFS,
			"templates/layout.html.tmpl",
			"templates/"+name+".html.tmpl",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		e.templates[name] = tmpl
	}
	return e, nil
}

func (e *Engine) buildFuncMap() template.FuncMap {
	return template.FuncMap{
		// Sizes and counts
		"formatBytes": FormatBytes,
		"formatLimit": FormatLimit,
		"formatCount": func(n int) string { return humanize.Comma(int64(n)) },

		// Dates
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.Format("Jan 2, 2006")
		},

		// Strings
		"upper":    strings.ToUpper,
		"join":     strings.Join,
		"truncate": truncate,

		// Form choices
		"dialogStatuses":  func() []models.UserStatus { return DialogStatuses },
		"resetStrategies": func() []Option { return ResetStrategies },
		"protocols":       func() []Option { return Protocols },

		// Replaced per render
		"csrfToken": func() string { return "" },
	}
}

// Render executes page with data into w. csrfToken fills the hidden field of
// every form on the page.
func (e *Engine) Render(w io.Writer, page string, data interface{}, csrfToken string) error {
	parsed, ok := e.templates[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	// The parsed set stays unexecuted so it can be cloned for every request.
	tmpl, err := parsed.Clone()
	if err != nil {
		return fmt.Errorf("failed to clone %s template: %w", page, err)
	}
	tmpl.Funcs(template.FuncMap{"csrfToken": func() string { return csrfToken }})

	// Render into a buffer so a failing template does not leave half a page.
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to execute %s template: %w", page, err)
	}
	_, err = buf.WriteTo(w)
	return err
}

// FormatBytes renders a byte count with binary units ("5.0 GiB").
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}

// FormatLimit renders a data limit; a non-positive limit is unlimited.
func FormatLimit(n int64) string {
	if n <= 0 {
		return "Unlimited"
	}
	return FormatBytes(n)
}

func truncate(s string, maxLen int) string {
	if maxLen <= 3 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
