// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ItemsPerPageKey stores the dashboard page size.
const ItemsPerPageKey = "items-per-page"

// Preferences stores dashboard preferences on the token backend.
type Preferences struct {
	backend Backend
}

// NewPreferences wraps backend.
func NewPreferences(backend Backend) *Preferences {
	return &Preferences{backend: backend}
}

// ItemsPerPage returns the saved page size, or fallback when none is saved or
// the saved value is not a positive integer.
func (p *Preferences) ItemsPerPage(ctx context.Context, fallback int) int {
	raw, err := p.backend.Get(ctx, ItemsPerPageKey)
	if err != nil {
		return fallback
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// SetItemsPerPage saves the page size.
func (p *Preferences) SetItemsPerPage(ctx context.Context, n int) error {
	if n <= 0 {
		return errors.New("items per page must be positive")
	}
	if err := p.backend.Set(ctx, ItemsPerPageKey, []byte(strconv.Itoa(n))); err != nil {
		return fmt.Errorf("save %s: %w", ItemsPerPageKey, err)
	}
	return nil
}
