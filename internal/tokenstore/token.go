// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package tokenstore

import (
	"context"
	"errors"
	"fmt"
)

// Storage keys, one per actor kind.
const (
	AdminTokenKey  = "admin_token"
	ClientTokenKey = "clientAuthToken"
)

// Actor kinds used in logs and metrics.
const (
	ActorAdmin  = "admin"
	ActorClient = "client-portal"
)

// ErrTokenNotFound means no token is stored for the actor.
var ErrTokenNotFound = errors.New("token not found")

// TokenStorage holds the single bearer token of one actor kind.
type TokenStorage struct {
	backend Backend
	key     string
	actor   string
}

// NewTokenStorage stores the token under key.
func NewTokenStorage(backend Backend, key, actor string) *TokenStorage {
	return &TokenStorage{backend: backend, key: key, actor: actor}
}

// Admin returns the admin dashboard token storage.
func Admin(backend Backend) *TokenStorage {
	return NewTokenStorage(backend, AdminTokenKey, ActorAdmin)
}

// ClientPortal returns the client portal token storage.
func ClientPortal(backend Backend) *TokenStorage {
	return NewTokenStorage(backend, ClientTokenKey, ActorClient)
}

// Actor returns the actor kind this storage belongs to.
func (s *TokenStorage) Actor() string {
	return s.actor
}

// Get returns the stored token. A missing value, an empty value and the
// literal "null" all report ErrTokenNotFound.
func (s *TokenStorage) Get(ctx context.Context) (string, error) {
	raw, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, ErrKeyNotFound) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.key, err)
	}
	token := string(raw)
	if token == "" || token == "null" {
		return "", ErrTokenNotFound
	}
	return token, nil
}

// Set replaces the stored token. An empty token removes it.
func (s *TokenStorage) Set(ctx context.Context, token string) error {
	if token == "" {
		return s.Remove(ctx)
	}
	if err := s.backend.Set(ctx, s.key, []byte(token)); err != nil {
		return fmt.Errorf("write %s: %w", s.key, err)
	}
	return nil
}

// Remove deletes the stored token.
func (s *TokenStorage) Remove(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("remove %s: %w", s.key, err)
	}
	return nil
}

// Token implements httpclient.TokenSource. Storage errors are treated as
// "no token" so that the request goes out unauthenticated and fails with 401.
func (s *TokenStorage) Token(ctx context.Context) string {
	token, err := s.Get(ctx)
	if err != nil {
		return ""
	}
	return token
}
