// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package router

import (
	"bytes"
	"errors"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/proxypanel/internal/httpclient"
	"github.com/tomtom215/proxypanel/internal/logging"
	"github.com/tomtom215/proxypanel/internal/middleware"
	"github.com/tomtom215/proxypanel/internal/models"
	"github.com/tomtom215/proxypanel/internal/panel"
	"github.com/tomtom215/proxypanel/internal/store"
	"github.com/tomtom215/proxypanel/internal/validation"
	"github.com/tomtom215/proxypanel/internal/views"
)

// render executes a page and writes it with status. Nothing is written when
// the template fails.
func (rt *Router) render(w http.ResponseWriter, r *http.Request, status int, page string, data interface{}) {
	var buf bytes.Buffer
	if err := rt.views.Render(&buf, page, data, middleware.CSRFToken(r.Context())); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("page", page).Msg("Failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write page")
	}
}

func (rt *Router) renderError(w http.ResponseWriter, r *http.Request, status int, message, back string) {
	nav := views.Nav{Portal: strings.HasPrefix(r.URL.Path, portalBack)}
	if admin := adminFrom(r); admin != nil {
		nav.User = admin.Username
	}
	rt.render(w, r, status, views.PageError, views.ErrorPage{
		Nav:     nav,
		Status:  status,
		Message: message,
		Back:    back,
	})
}

// seeOther answers a mutating request with a redirect to back.
func seeOther(w http.ResponseWriter, r *http.Request, back string) {
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// afterMutation finishes a mutating request. Errors the store recorded in its
// state are shown by the page the client is sent back to; errors that leave
// no trace in the state get an error page.
func (rt *Router) afterMutation(w http.ResponseWriter, r *http.Request, err error, back string) {
	if err == nil || recordedInState(err) {
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Mutation failed")
		}
		seeOther(w, r, back)
		return
	}
	logging.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("Mutation rejected")
	rt.renderError(w, r, statusFor(err), messageFor(err), back)
}

// recordedInState reports whether a store kept err in its snapshot (slot or
// page error) rather than returning it without touching state.
func recordedInState(err error) bool {
	return !errors.Is(err, store.ErrNoSelection) &&
		!errors.Is(err, store.ErrBusy) &&
		!errors.Is(err, store.ErrUnknownService) &&
		!errors.Is(err, panel.ErrInvalidNodeID) &&
		!errors.Is(err, panel.ErrInvalidServiceID) &&
		!errors.Is(err, errNotFound) &&
		!errors.Is(err, errSlotMismatch)
}

var (
	errNotFound     = errors.New("not found")
	errSlotMismatch = errors.New("the open dialog is for a different item")
)

// statusFor maps an error onto the status of the answer.
func statusFor(err error) int {
	var validationErr *validation.RequestValidationError
	var fieldErr *models.FieldError
	var transportErr *httpclient.TransportError

	switch {
	case errors.Is(err, store.ErrNotAuthenticated), httpclient.IsUnauthorized(err):
		return http.StatusUnauthorized
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrNoSelection), errors.Is(err, store.ErrBusy), errors.Is(err, errSlotMismatch):
		return http.StatusConflict
	case errors.Is(err, panel.ErrMissingAccountNumber), errors.Is(err, panel.ErrInvalidNodeID),
		errors.Is(err, panel.ErrInvalidServiceID), errors.Is(err, store.ErrUnknownService):
		return http.StatusBadRequest
	case errors.As(err, &validationErr), errors.As(err, &fieldErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &transportErr):
		if errors.Is(err, httpclient.ErrCircuitOpen) {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	}
	if code := httpclient.StatusCode(err); code >= 400 && code < 500 {
		return code
	} else if code >= 500 {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// messageFor is what the user sees for err.
func messageFor(err error) string {
	switch {
	case errors.Is(err, store.ErrNoSelection):
		return "Nothing is selected, reopen the dialog and try again"
	case errors.Is(err, store.ErrBusy):
		return "Another request for this item is still running"
	}
	var validationErr *validation.RequestValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Error()
	}
	return httpclient.DetailOf(err)
}

// errorCode is the APIError code of the JSON envelope.
func errorCode(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "AUTHENTICATION_ERROR"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return "VALIDATION_ERROR"
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	default:
		return "PANEL_ERROR"
	}
}

// respondJSON sends data in the success envelope.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, response *models.APIResponse) {
	response.Metadata.Timestamp = time.Now().UTC()
	response.Metadata.RequestID = middleware.GetRequestID(r.Context())

	data, err := json.Marshal(response)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func respondData(w http.ResponseWriter, r *http.Request, data interface{}) {
	respondJSON(w, r, http.StatusOK, &models.APIResponse{Status: "success", Data: data})
}

// respondError sends err in the error envelope.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	apiErr := &models.APIError{Code: errorCode(status), Message: messageFor(err)}
	if fields := httpclient.FieldErrorsOf(err); len(fields) > 0 {
		apiErr.Details = map[string]interface{}{"fields": fields}
	}
	var validationErr *validation.RequestValidationError
	if errors.As(err, &validationErr) {
		apiErr.Details = map[string]interface{}{"fields": validationErr.FieldErrors()}
	}
	respondJSON(w, r, status, &models.APIResponse{Status: "error", Error: apiErr})
}

// sendBlob streams a downloaded file as an attachment.
func sendBlob(w http.ResponseWriter, r *http.Request, blob *models.Blob, fallbackName string) {
	name := blob.Filename
	if name == "" {
		name = fallbackName
	}
	contentType := blob.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(blob.Data); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write download")
	}
}

func (rt *Router) layout(r *http.Request) views.Layout {
	return views.LayoutFromRequest(r, rt.cfg.Breakpoint)
}

// intParam reads a positive integer URL parameter.
func intParam(r *http.Request, key string) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, key))
	if err != nil || n <= 0 {
		return 0, errNotFound
	}
	return n, nil
}

// formInt parses an integer form field; empty means 0.
func formInt(r *http.Request, field string) (int, error) {
	raw := strings.TrimSpace(r.PostFormValue(field))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &models.FieldError{Field: field, Message: "must be a whole number"}
	}
	return n, nil
}

// formFloat parses a decimal form field; empty means 0.
func formFloat(r *http.Request, field string) (float64, error) {
	raw := strings.TrimSpace(r.PostFormValue(field))
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &models.FieldError{Field: field, Message: "must be a number"}
	}
	return f, nil
}

func formBool(r *http.Request, field string) bool {
	v, _ := strconv.ParseBool(r.PostFormValue(field))
	return v
}

// fieldErrorMap turns a form parsing error into dialog field errors.
func fieldErrorMap(err error) map[string]string {
	var fieldErr *models.FieldError
	if errors.As(err, &fieldErr) {
		return map[string]string{fieldErr.Field: fieldErr.Message}
	}
	return nil
}
