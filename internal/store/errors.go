// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package store

import (
	"errors"

	"github.com/tomtom215/proxypanel/internal/httpclient"
	"github.com/tomtom215/proxypanel/internal/models"
	"github.com/tomtom215/proxypanel/internal/validation"
)

var (
	// ErrNoSelection is returned by a submit mutator whose slot is idle.
	ErrNoSelection = errors.New("nothing selected")

	// ErrBusy is returned when the slot is already submitting.
	ErrBusy = errors.New("operation already in progress")

	// ErrNotAuthenticated is returned by session stores without a token.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// errorText turns err into what a dialog shows: the panel's detail message,
// or the error string for local failures.
func errorText(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *httpclient.APIError
	var transportErr *httpclient.TransportError
	if errors.As(err, &apiErr) || errors.As(err, &transportErr) {
		return httpclient.DetailOf(err)
	}
	var validationErr *validation.RequestValidationError
	if errors.As(err, &validationErr) {
		return "Please correct the highlighted fields"
	}
	var fieldErr *models.FieldError
	if errors.As(err, &fieldErr) {
		return fieldErr.Error()
	}
	return err.Error()
}

// fieldErrors extracts per-field messages from a 422 answer, a local
// validation failure or a form conversion failure.
func fieldErrors(err error) map[string]string {
	if err == nil {
		return nil
	}
	var validationErr *validation.RequestValidationError
	if errors.As(err, &validationErr) {
		return validationErr.FieldErrors()
	}
	var fieldErr *models.FieldError
	if errors.As(err, &fieldErr) {
		return map[string]string{fieldErr.Field: fieldErr.Message}
	}
	return httpclient.FieldErrorsOf(err)
}
