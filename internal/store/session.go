// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tomtom215/proxypanel/internal/httpclient"
	"github.com/tomtom215/proxypanel/internal/logging"
	"github.com/tomtom215/proxypanel/internal/metrics"
	"github.com/tomtom215/proxypanel/internal/models"
	"github.com/tomtom215/proxypanel/internal/tokenstore"
	"github.com/tomtom215/proxypanel/internal/validation"
)

const sessionStore = "session"

// TokenStore persists the bearer token of one actor kind.
type TokenStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Remove(ctx context.Context) error
}

// AdminSessionAPI is the part of the admin API the session store uses.
type AdminSessionAPI interface {
	Login(ctx context.Context, username, password string) (*models.TokenResponse, error)
	CurrentAdmin(ctx context.Context) (*models.Admin, error)
}

// SessionState is a snapshot of the admin session store.
type SessionState struct {
	Admin         *models.Admin     `json:"admin,omitempty"`
	Authenticated bool              `json:"authenticated"`
	LoggingIn     bool              `json:"logging_in"`
	Error         string            `json:"error,omitempty"`
	FieldErrors   map[string]string `json:"field_errors,omitempty"`
}

// Session tracks whether the dashboard holds a working admin token.
type Session struct {
	*observers

	api    AdminSessionAPI
	tokens TokenStore
	audit  *logging.SecurityLogger

	mu    sync.Mutex
	state SessionState
}

// NewSession builds the admin session store.
func NewSession(api AdminSessionAPI, tokens TokenStore) *Session {
	return &Session{
		observers: newObservers(sessionStore),
		api:       api,
		tokens:    tokens,
		audit:     logging.NewSecurityLogger(),
	}
}

// State returns a snapshot.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) update(fn func(st *SessionState)) {
	s.mu.Lock()
	fn(&s.state)
	s.mu.Unlock()
	s.notify()
}

// Authenticated reports whether the last verification or login succeeded.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Authenticated
}

// Login exchanges credentials for a token and persists it. On failure the
// stored token is left untouched and the panel's detail is recorded.
func (s *Session) Login(ctx context.Context, form models.AdminLoginForm) error {
	if verr := validation.ValidateStruct(form); verr != nil {
		s.update(func(st *SessionState) {
			st.Error = errorText(verr)
			st.FieldErrors = verr.FieldErrors()
		})
		return verr
	}

	busy := false
	s.update(func(st *SessionState) {
		busy = st.LoggingIn
		st.LoggingIn = true
		st.Error = ""
		st.FieldErrors = nil
	})
	if busy {
		return ErrBusy
	}

	err := s.login(ctx, form)
	metrics.RecordMutation(sessionStore, "login", err)
	if err != nil {
		s.audit.LogLoginFailure(tokenstore.ActorAdmin, form.Username, logging.ClientIPFromContext(ctx), httpclient.DetailOf(err))
		s.update(func(st *SessionState) {
			st.LoggingIn = false
			st.Error = errorText(err)
			st.FieldErrors = fieldErrors(err)
		})
		return err
	}

	admin, verifyErr := s.api.CurrentAdmin(ctx)
	s.audit.LogLoginSuccess(tokenstore.ActorAdmin, form.Username, logging.ClientIPFromContext(ctx))
	s.update(func(st *SessionState) {
		st.LoggingIn = false
		st.Authenticated = true
		if verifyErr == nil {
			st.Admin = admin
		} else {
			st.Admin = &models.Admin{Username: form.Username}
		}
	})
	return nil
}

func (s *Session) login(ctx context.Context, form models.AdminLoginForm) error {
	tok, err := s.api.Login(ctx, form.Username, form.Password)
	if err != nil {
		return err
	}
	if tok.AccessToken == "" {
		return errors.New("panel returned an empty token")
	}
	if err := s.tokens.Set(ctx, tok.AccessToken); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	return nil
}

// Logout forgets the token.
func (s *Session) Logout(ctx context.Context) error {
	username := ""
	s.mu.Lock()
	if s.state.Admin != nil {
		username = s.state.Admin.Username
	}
	s.mu.Unlock()

	err := s.tokens.Remove(ctx)
	s.update(func(st *SessionState) { *st = SessionState{} })
	s.audit.LogLogout(tokenstore.ActorAdmin, username, logging.ClientIPFromContext(ctx))
	if err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// Verify checks the stored token against the panel. Without a token it fails
// with ErrNotAuthenticated and sends nothing.
func (s *Session) Verify(ctx context.Context) (*models.Admin, error) {
	if tok, err := s.tokens.Get(ctx); err != nil || tok == "" {
		s.update(func(st *SessionState) {
			st.Authenticated = false
			st.Admin = nil
		})
		return nil, ErrNotAuthenticated
	}

	admin, err := s.api.CurrentAdmin(ctx)
	s.update(func(st *SessionState) {
		st.Authenticated = err == nil
		st.Admin = admin
	})
	if err != nil {
		return nil, fmt.Errorf("verify admin session: %w", err)
	}
	return admin, nil
}

// HandleUnauthorized drops the token after the panel rejected it. It is
// installed as the HTTP client's unauthorized hook.
func (s *Session) HandleUnauthorized(ctx context.Context) {
	if tok, err := s.tokens.Get(ctx); err == nil {
		s.audit.LogTokenRejected(tokenstore.ActorAdmin, tok)
	}
	if err := s.tokens.Remove(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to remove rejected admin token")
	}
	s.update(func(st *SessionState) {
		st.Authenticated = false
		st.Admin = nil
	})
}
