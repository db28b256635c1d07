// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package router

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/proxypanel/internal/logging"
	"github.com/tomtom215/proxypanel/internal/models"
	"github.com/tomtom215/proxypanel/internal/store"
	"github.com/tomtom215/proxypanel/internal/views"
)

func (rt *Router) dashboardRoutes(r chi.Router) {
	r.Get("/", rt.dashboard)
	r.Post("/users/items-per-page", rt.itemsPerPage)

	r.Post("/users/new", rt.dashboardAction(func(r *http.Request) error {
		storesOf(r).Dashboard.OnCreateUser(true)
		return nil
	}))
	r.Post("/users/new/cancel", rt.dashboardAction(func(r *http.Request) error {
		storesOf(r).Dashboard.OnCreateUser(false)
		return nil
	}))
	r.Post("/users", rt.createUser)
	r.Post("/users/edit/cancel", rt.dashboardAction(func(r *http.Request) error {
		storesOf(r).Dashboard.OnEditingUser(nil)
		return nil
	}))

	// Two-step destructive actions: select opens the confirmation, confirm
	// submits it.
	r.Post("/users/delete/confirm", rt.dashboardAction(func(r *http.Request) error {
		return storesOf(r).Dashboard.DeleteUser(r.Context())
	}))
	r.Post("/users/delete/cancel", rt.dashboardAction(func(r *http.Request) error {
		storesOf(r).Dashboard.OnDeletingUser(nil)
		return nil
	}))
	r.Post("/users/reset/confirm", rt.dashboardAction(func(r *http.Request) error {
		return storesOf(r).Dashboard.ResetUserUsage(r.Context())
	}))
	r.Post("/users/reset/cancel", rt.dashboardAction(func(r *http.Request) error {
		storesOf(r).Dashboard.OnResetUsageUser(nil)
		return nil
	}))
	r.Post("/users/revoke/confirm", rt.dashboardAction(func(r *http.Request) error {
		return storesOf(r).Dashboard.RevokeSubscription(r.Context())
	}))
	r.Post("/users/revoke/cancel", rt.dashboardAction(func(r *http.Request) error {
		storesOf(r).Dashboard.OnRevokeSubUser(nil)
		return nil
	}))

	r.Route("/users/{account}", func(r chi.Router) {
		r.Post("/", rt.editUser)
		r.Post("/edit", rt.selectUser((*store.Dashboard).OnEditingUser))
		r.Post("/delete", rt.selectUser((*store.Dashboard).OnDeletingUser))
		r.Post("/reset", rt.selectUser((*store.Dashboard).OnResetUsageUser))
		r.Post("/revoke", rt.selectUser((*store.Dashboard).OnRevokeSubUser))
		r.Post("/usage", rt.showUsage)
	})
}

// dashboardAction runs fn and sends the client back to the users page.
func (rt *Router) dashboardAction(fn func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rt.afterMutation(w, r, fn(r), rt.usersBack(r))
	}
}

// usersBack keeps the viewport width across the redirect.
func (rt *Router) usersBack(r *http.Request) string {
	if w := r.PostFormValue("width"); w != "" {
		if n, err := strconv.Atoi(w); err == nil && n > 0 {
			return "/?width=" + strconv.Itoa(n)
		}
	}
	return "/"
}

// dashboard loads the users page. Query parameters that differ from the
// current filter are applied as one filter change.
func (rt *Router) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d := storesOf(r).Dashboard

	var err error
	if patch, changed := filterPatch(r, d.State().Filter); changed {
		err = d.OnFilterChange(ctx, patch)
	} else {
		err = d.FetchUsers(ctx)
	}
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("User list fetch failed")
	}
	if err := d.FetchStatistics(ctx); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("Statistics fetch failed")
	}
	rt.renderDashboard(w, r, http.StatusOK, nil)
}

func filterPatch(r *http.Request, current models.UserFilter) (store.FilterPatch, bool) {
	q := r.URL.Query()
	var patch store.FilterPatch
	changed := false

	if q.Has("search") {
		if search := strings.TrimSpace(q.Get("search")); search != current.Search {
			patch.Search = &search
			changed = true
		}
	}
	if q.Has("status") {
		if status := models.UserStatus(q.Get("status")); status != current.Status {
			patch.Status = &status
			changed = true
		}
	}
	if q.Has("sort") {
		if sort := strings.TrimSpace(q.Get("sort")); models.ValidUserSort(sort) && sort != current.Sort {
			patch.Sort = &sort
			changed = true
		}
	}
	if q.Has("descending") {
		if desc, err := strconv.ParseBool(q.Get("descending")); err == nil && desc != current.Descending {
			patch.Descending = &desc
			changed = true
		}
	}
	if q.Has("limit") {
		if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 && limit <= models.MaxUsersLimit && limit != current.Limit {
			patch.Limit = &limit
			changed = true
		}
	}
	if q.Has("offset") {
		if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset >= 0 && offset != current.Offset {
			patch.Offset = &offset
			changed = true
		}
	}
	return patch, changed
}

// renderDashboard renders the users page; fields overrides the open dialog's
// field errors for input that never reached the store.
func (rt *Router) renderDashboard(w http.ResponseWriter, r *http.Request, status int, fields map[string]string) {
	page := views.Dashboard(storesOf(r).Dashboard.State(), rt.nav(r, "users"), rt.layout(r), rt.cfg.Now())
	if fields != nil {
		page.Dialog.FieldErrors = fields
	}
	rt.render(w, r, status, views.PageDashboard, page)
}

func (rt *Router) itemsPerPage(w http.ResponseWriter, r *http.Request) {
	n, err := formInt(r, "limit")
	if err == nil {
		err = storesOf(r).Dashboard.SetItemsPerPage(r.Context(), n)
	}
	if fields := fieldErrorMap(err); fields != nil {
		rt.renderError(w, r, http.StatusUnprocessableEntity, "Items per page "+fields["limit"], "/")
		return
	}
	rt.afterMutation(w, r, err, rt.usersBack(r))
}

func userForm(r *http.Request) (models.UserForm, error) {
	if err := r.ParseForm(); err != nil {
		return models.UserForm{}, err
	}
	form := models.UserForm{
		Status:                 models.UserStatus(r.PostFormValue("status")),
		DataLimitResetStrategy: models.ResetStrategy(r.PostFormValue("data_limit_reset_strategy")),
		Protocols:              r.PostForm["proxies"],
		Note:                   r.PostFormValue("note"),
	}
	var err error
	if form.DataLimitGB, err = formFloat(r, "data_limit"); err != nil {
		return form, err
	}
	if form.ExpireDays, err = formInt(r, "expire"); err != nil {
		return form, err
	}
	if form.OnHoldExpireDays, err = formInt(r, "on_hold_expire_duration"); err != nil {
		return form, err
	}
	return form, nil
}

func (rt *Router) createUser(w http.ResponseWriter, r *http.Request) {
	form, err := userForm(r)
	if fields := fieldErrorMap(err); fields != nil {
		rt.renderDashboard(w, r, http.StatusUnprocessableEntity, fields)
		return
	}
	if err == nil {
		err = storesOf(r).Dashboard.CreateUser(r.Context(), form)
	}
	rt.afterMutation(w, r, err, rt.usersBack(r))
}

func (rt *Router) editUser(w http.ResponseWriter, r *http.Request) {
	st := storesOf(r).Dashboard.State()
	if !st.Editing.Open() || st.Editing.Value.AccountNumber != chi.URLParam(r, "account") {
		rt.afterMutation(w, r, errSlotMismatch, rt.usersBack(r))
		return
	}

	form, err := userForm(r)
	if fields := fieldErrorMap(err); fields != nil {
		rt.renderDashboard(w, r, http.StatusUnprocessableEntity, fields)
		return
	}
	if err == nil {
		err = storesOf(r).Dashboard.EditUser(r.Context(), form)
	}
	rt.afterMutation(w, r, err, rt.usersBack(r))
}

// selectUser opens a dialog for a listed user.
func (rt *Router) selectUser(open func(*store.Dashboard, *models.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d := storesOf(r).Dashboard
		user, ok := d.State().User(chi.URLParam(r, "account"))
		if !ok {
			rt.afterMutation(w, r, errNotFound, rt.usersBack(r))
			return
		}
		open(d, &user)
		seeOther(w, r, rt.usersBack(r))
	}
}

func (rt *Router) showUsage(w http.ResponseWriter, r *http.Request) {
	st := storesOf(r).Dashboard.State()
	if !st.Editing.Open() || st.Editing.Value.AccountNumber != chi.URLParam(r, "account") {
		rt.afterMutation(w, r, errSlotMismatch, rt.usersBack(r))
		return
	}
	period := store.UsagePeriod(r.PostFormValue("period"))
	if period == "" {
		period = st.EditDialog.UsagePeriod
	}
	err := storesOf(r).Dashboard.ShowUsage(r.Context(), formBool(r, "visible"), period)
	rt.afterMutation(w, r, err, rt.usersBack(r))
}
