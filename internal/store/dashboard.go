// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/maypok86/otter"

	"github.com/tomtom215/proxypanel/internal/logging"
	"github.com/tomtom215/proxypanel/internal/metrics"
	"github.com/tomtom215/proxypanel/internal/models"
	"github.com/tomtom215/proxypanel/internal/panel"
	"github.com/tomtom215/proxypanel/internal/validation"
)

const dashboardStore = "dashboard"

// UsersAPI is the part of the admin API the dashboard store uses.
type UsersAPI interface {
	ListUsers(ctx context.Context, filter models.UserFilter) (*models.UsersResponse, error)
	CreateUser(ctx context.Context, req models.UserRequest) (*models.User, error)
	ModifyUser(ctx context.Context, acct string, req models.UserRequest) (*models.User, error)
	DeleteUser(ctx context.Context, acct string) error
	UserUsage(ctx context.Context, acct string, start, end time.Time) (*models.UserUsage, error)
	ResetUserUsage(ctx context.Context, acct string) (*models.User, error)
	RevokeSubscription(ctx context.Context, acct string) (*models.User, error)
	SystemStats(ctx context.Context) (*models.SystemStats, error)
}

// PreferenceStore persists UI preferences.
type PreferenceStore interface {
	ItemsPerPage(ctx context.Context, fallback int) int
	SetItemsPerPage(ctx context.Context, n int) error
}

// UsagePeriod is the window of the usage chart in the edit dialog.
type UsagePeriod string

const (
	UsagePeriodDay     UsagePeriod = "1d"
	UsagePeriodWeek    UsagePeriod = "7d"
	UsagePeriodMonth   UsagePeriod = "30d"
	UsagePeriodQuarter UsagePeriod = "90d"

	DefaultUsagePeriod = UsagePeriodWeek
)

var usagePeriods = map[UsagePeriod]time.Duration{
	UsagePeriodDay:     24 * time.Hour,
	UsagePeriodWeek:    7 * 24 * time.Hour,
	UsagePeriodMonth:   30 * 24 * time.Hour,
	UsagePeriodQuarter: 90 * 24 * time.Hour,
}

// Duration returns the window length, falling back to the default period.
func (p UsagePeriod) Duration() time.Duration {
	if d, ok := usagePeriods[p]; ok {
		return d
	}
	return usagePeriods[DefaultUsagePeriod]
}

// FilterPatch is a partial filter update. Nil fields are left unchanged.
type FilterPatch struct {
	Search     *string
	Offset     *int
	Limit      *int
	Sort       *string
	Descending *bool
	Status     *models.UserStatus
}

// Apply merges the patch into f. A patch that touches search, status or
// limit starts again at the first page, whatever offset it carries.
func (p FilterPatch) Apply(f models.UserFilter) models.UserFilter {
	if p.Offset != nil {
		f.Offset = *p.Offset
	}
	if p.Sort != nil {
		f.Sort = *p.Sort
	}
	if p.Descending != nil {
		f.Descending = *p.Descending
	}

	reset := false
	if p.Search != nil {
		f.Search = strings.TrimSpace(*p.Search)
		reset = true
	}
	if p.Status != nil {
		f.Status = *p.Status
		reset = true
	}
	if p.Limit != nil {
		f.Limit = *p.Limit
		reset = true
	}
	if reset || f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// EditDialogState is transient state of the user edit dialog. It is reset
// whenever the dialog closes or switches user.
type EditDialogState struct {
	UsageVisible bool              `json:"usage_visible"`
	UsagePeriod  UsagePeriod       `json:"usage_period"`
	Usage        *models.UserUsage `json:"usage,omitempty"`
	UsageError   string            `json:"usage_error,omitempty"`
}

// DashboardState is a snapshot of the dashboard store.
type DashboardState struct {
	Users   []models.User       `json:"users"`
	Total   int                 `json:"total"`
	Filter  models.UserFilter   `json:"filter"`
	Stats   *models.SystemStats `json:"stats,omitempty"`
	Loading bool                `json:"loading"`
	Error   string              `json:"error,omitempty"`

	Creating   Slot[struct{}]    `json:"creating"`
	Editing    Slot[models.User] `json:"editing"`
	Deleting   Slot[models.User] `json:"deleting"`
	ResetUsage Slot[models.User] `json:"reset_usage"`
	RevokeSub  Slot[models.User] `json:"revoke_sub"`

	EditDialog EditDialogState `json:"edit_dialog"`
}

// Page returns the 1-based current page.
func (s DashboardState) Page() int {
	if s.Filter.Limit <= 0 {
		return 1
	}
	return s.Filter.Offset/s.Filter.Limit + 1
}

// Pages returns the number of pages for Total, at least 1.
func (s DashboardState) Pages() int {
	if s.Filter.Limit <= 0 || s.Total <= 0 {
		return 1
	}
	return (s.Total + s.Filter.Limit - 1) / s.Filter.Limit
}

// User finds a listed user by account number.
func (s DashboardState) User(acct string) (models.User, bool) {
	for _, u := range s.Users {
		if u.AccountNumber == acct {
			return u, true
		}
	}
	return models.User{}, false
}

// Dashboard is the admin users and statistics store.
type Dashboard struct {
	*observers

	api   UsersAPI
	prefs PreferenceStore
	usage otter.Cache[string, models.UserUsage]
	now   func() time.Time

	mu    sync.Mutex
	state DashboardState
	users generation
	stats generation
}

// DashboardOptions configures NewDashboard.
type DashboardOptions struct {
	PageSize      int
	UsageCacheTTL time.Duration
	UsageCacheMax int
	Now           func() time.Time
}

// NewDashboard builds the dashboard store. prefs may be nil.
func NewDashboard(api UsersAPI, prefs PreferenceStore, opts DashboardOptions) (*Dashboard, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.UsageCacheTTL <= 0 {
		opts.UsageCacheTTL = time.Minute
	}
	if opts.UsageCacheMax <= 0 {
		opts.UsageCacheMax = 512
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cache, err := otter.MustBuilder[string, models.UserUsage](opts.UsageCacheMax).
		Cost(func(_ string, _ models.UserUsage) uint32 { return 1 }).
		WithTTL(opts.UsageCacheTTL).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build usage cache: %w", err)
	}

	return &Dashboard{
		observers: newObservers(dashboardStore),
		api:       api,
		prefs:     prefs,
		usage:     cache,
		now:       opts.Now,
		state: DashboardState{
			Filter:     models.UserFilter{Limit: opts.PageSize},
			EditDialog: EditDialogState{UsagePeriod: DefaultUsagePeriod},
		},
	}, nil
}

// State returns a snapshot.
func (d *Dashboard) State() DashboardState {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.state
	s.Users = append([]models.User(nil), d.state.Users...)
	return s
}

func (d *Dashboard) update(fn func(s *DashboardState)) {
	d.mu.Lock()
	fn(&d.state)
	d.mu.Unlock()
	d.notify()
}

// Restore loads the persisted items-per-page preference into the filter.
func (d *Dashboard) Restore(ctx context.Context) {
	if d.prefs == nil {
		return
	}
	d.mu.Lock()
	fallback := d.state.Filter.Limit
	d.mu.Unlock()

	limit := d.prefs.ItemsPerPage(ctx, fallback)
	d.update(func(s *DashboardState) { s.Filter.Limit = limit })
}

// OnCreateUser opens or closes the create dialog. Opening it closes the
// edit dialog; it is refused while an edit is being submitted.
func (d *Dashboard) OnCreateUser(open bool) {
	d.update(func(s *DashboardState) {
		if !open {
			s.Creating.Clear()
			return
		}
		if s.Editing.Submitting() {
			return
		}
		if s.Creating.Select(struct{}{}) && s.Editing.Clear() {
			s.EditDialog = EditDialogState{UsagePeriod: DefaultUsagePeriod}
		}
	})
}

// OnEditingUser selects user for editing, or closes the dialog when user is
// nil. Selecting closes the create dialog and is refused while a create is
// being submitted.
func (d *Dashboard) OnEditingUser(user *models.User) {
	d.update(func(s *DashboardState) {
		if user == nil {
			if s.Editing.Clear() {
				s.EditDialog = EditDialogState{UsagePeriod: DefaultUsagePeriod}
			}
			return
		}
		if s.Creating.Submitting() {
			return
		}
		previous := s.Editing.Value.AccountNumber
		if !s.Editing.Select(*user) {
			return
		}
		s.Creating.Clear()
		if previous != user.AccountNumber {
			s.EditDialog = EditDialogState{UsagePeriod: DefaultUsagePeriod}
		}
	})
}

// OnDeletingUser opens the delete confirmation for user, or closes it.
func (d *Dashboard) OnDeletingUser(user *models.User) {
	d.update(func(s *DashboardState) { selectOrClear(&s.Deleting, user) })
}

// OnResetUsageUser opens the reset-usage confirmation for user, or closes it.
func (d *Dashboard) OnResetUsageUser(user *models.User) {
	d.update(func(s *DashboardState) { selectOrClear(&s.ResetUsage, user) })
}

// OnRevokeSubUser opens the revoke confirmation for user, or closes it.
func (d *Dashboard) OnRevokeSubUser(user *models.User) {
	d.update(func(s *DashboardState) { selectOrClear(&s.RevokeSub, user) })
}

func selectOrClear[T any](slot *Slot[T], v *T) {
	if v == nil {
		slot.Clear()
		return
	}
	slot.Select(*v)
}

// OnFilterChange merges patch into the filter and refetches the list.
func (d *Dashboard) OnFilterChange(ctx context.Context, patch FilterPatch) error {
	d.update(func(s *DashboardState) {
		s.Filter = patch.Apply(s.Filter)
	})
	return d.FetchUsers(ctx)
}

// SetItemsPerPage persists n and applies it as the page size.
func (d *Dashboard) SetItemsPerPage(ctx context.Context, n int) error {
	if n <= 0 {
		return &models.FieldError{Field: "limit", Message: "must be positive"}
	}
	if n > models.MaxUsersLimit {
		return &models.FieldError{Field: "limit", Message: fmt.Sprintf("must be at most %d", models.MaxUsersLimit)}
	}
	if d.prefs != nil {
		if err := d.prefs.SetItemsPerPage(ctx, n); err != nil {
			return fmt.Errorf("save items per page: %w", err)
		}
	}
	return d.OnFilterChange(ctx, FilterPatch{Limit: &n})
}

// FetchUsers loads the page selected by the current filter. Only the latest
// issued fetch is applied.
func (d *Dashboard) FetchUsers(ctx context.Context) error {
	d.mu.Lock()
	gen := d.users.issue()
	filter := d.state.Filter
	d.state.Loading = true
	d.mu.Unlock()
	d.notify()

	resp, err := d.api.ListUsers(ctx, filter)

	d.mu.Lock()
	if !d.users.current(gen) {
		d.mu.Unlock()
		metrics.StoreStaleResults.WithLabelValues(dashboardStore, "users").Inc()
		logging.Ctx(ctx).Debug().Uint64("generation", gen).Msg("Discarding superseded user list")
		return nil
	}
	d.state.Loading = false
	if err != nil {
		d.state.Error = errorText(err)
	} else {
		d.state.Users = resp.Users
		d.state.Total = resp.Total
		d.state.Error = ""
	}
	d.mu.Unlock()
	d.notify()

	if err != nil {
		return fmt.Errorf("fetch users: %w", err)
	}
	return nil
}

// FetchStatistics loads the system summary. Only the latest issued fetch is
// applied.
func (d *Dashboard) FetchStatistics(ctx context.Context) error {
	d.mu.Lock()
	gen := d.stats.issue()
	d.mu.Unlock()

	stats, err := d.api.SystemStats(ctx)

	d.mu.Lock()
	if !d.stats.current(gen) {
		d.mu.Unlock()
		metrics.StoreStaleResults.WithLabelValues(dashboardStore, "statistics").Inc()
		return nil
	}
	if err == nil {
		d.state.Stats = stats
	}
	d.mu.Unlock()

	if err != nil {
		return fmt.Errorf("fetch statistics: %w", err)
	}
	d.notify()
	return nil
}

// refetch reloads the list and the statistics after a successful mutation.
// Failures are recorded in the state and logged; the mutation itself stands.
func (d *Dashboard) refetch(ctx context.Context) {
	metrics.StoreRefetches.WithLabelValues(dashboardStore, "users").Inc()
	if err := d.FetchUsers(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("User list refetch failed")
	}
	metrics.StoreRefetches.WithLabelValues(dashboardStore, "statistics").Inc()
	if err := d.FetchStatistics(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Statistics refetch failed")
	}
}

func requireAccount(u models.User) error {
	if !panel.ValidAccountNumber(u.AccountNumber) {
		return panel.ErrMissingAccountNumber
	}
	return nil
}

// CreateUser submits the create dialog.
func (d *Dashboard) CreateUser(ctx context.Context, form models.UserForm) error {
	precheck := func(struct{}) error {
		if verr := validation.ValidateStruct(form); verr != nil {
			return verr
		}
		return nil
	}
	err := submit(ctx, &d.mu, &d.state.Creating, d.observers, precheck, func(ctx context.Context, _ struct{}) error {
		_, err := d.api.CreateUser(ctx, form.Request(d.now()))
		return err
	})
	metrics.RecordMutation(dashboardStore, "create_user", err)
	if err != nil {
		return err
	}
	d.refetch(ctx)
	return nil
}

// EditUser submits the edit dialog for the selected user.
func (d *Dashboard) EditUser(ctx context.Context, form models.UserForm) error {
	precheck := func(u models.User) error {
		if err := requireAccount(u); err != nil {
			return err
		}
		if verr := validation.ValidateStruct(form); verr != nil {
			return verr
		}
		return nil
	}
	var acct string
	err := submit(ctx, &d.mu, &d.state.Editing, d.observers, precheck, func(ctx context.Context, u models.User) error {
		acct = u.AccountNumber
		_, err := d.api.ModifyUser(ctx, u.AccountNumber, form.EditRequest(u, d.now()))
		return err
	})
	metrics.RecordMutation(dashboardStore, "edit_user", err)
	if err != nil {
		return err
	}
	d.invalidateUsage(acct)
	d.update(func(s *DashboardState) {
		s.EditDialog = EditDialogState{UsagePeriod: DefaultUsagePeriod}
	})
	d.refetch(ctx)
	return nil
}

// DeleteUser confirms the pending delete.
func (d *Dashboard) DeleteUser(ctx context.Context) error {
	var acct string
	err := submit(ctx, &d.mu, &d.state.Deleting, d.observers, requireAccount, func(ctx context.Context, u models.User) error {
		acct = u.AccountNumber
		return d.api.DeleteUser(ctx, u.AccountNumber)
	})
	metrics.RecordMutation(dashboardStore, "delete_user", err)
	if err != nil {
		return err
	}
	d.invalidateUsage(acct)
	d.update(func(s *DashboardState) {
		if s.Editing.Value.AccountNumber == acct && s.Editing.Clear() {
			s.EditDialog = EditDialogState{UsagePeriod: DefaultUsagePeriod}
		}
	})
	d.refetch(ctx)
	return nil
}

// ResetUserUsage confirms the pending usage reset.
func (d *Dashboard) ResetUserUsage(ctx context.Context) error {
	var acct string
	err := submit(ctx, &d.mu, &d.state.ResetUsage, d.observers, requireAccount, func(ctx context.Context, u models.User) error {
		acct = u.AccountNumber
		_, err := d.api.ResetUserUsage(ctx, u.AccountNumber)
		return err
	})
	metrics.RecordMutation(dashboardStore, "reset_usage", err)
	if err != nil {
		return err
	}
	d.invalidateUsage(acct)
	d.refetch(ctx)
	return nil
}

// RevokeSubscription confirms the pending revoke. When the panel answers with
// the updated user it replaces the listed entry in place; otherwise the list
// is refetched.
func (d *Dashboard) RevokeSubscription(ctx context.Context) error {
	var target string
	var updated *models.User
	err := submit(ctx, &d.mu, &d.state.RevokeSub, d.observers, requireAccount, func(ctx context.Context, u models.User) error {
		target = u.AccountNumber
		var err error
		updated, err = d.api.RevokeSubscription(ctx, u.AccountNumber)
		return err
	})
	metrics.RecordMutation(dashboardStore, "revoke_subscription", err)
	if err != nil {
		return err
	}

	patched := false
	if updated != nil && updated.AccountNumber == target {
		d.mu.Lock()
		for i := range d.state.Users {
			if d.state.Users[i].AccountNumber == target {
				users := append([]models.User(nil), d.state.Users...)
				users[i] = *updated
				d.state.Users = users
				patched = true
				break
			}
		}
		d.mu.Unlock()
	}

	if patched {
		d.notify()
		return nil
	}
	metrics.StoreRefetches.WithLabelValues(dashboardStore, "users").Inc()
	if err := d.FetchUsers(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("User list refetch after revoke failed")
	}
	return nil
}

// ShowUsage toggles the usage chart of the edit dialog and loads the usage
// for period when shown.
func (d *Dashboard) ShowUsage(ctx context.Context, visible bool, period UsagePeriod) error {
	if _, ok := usagePeriods[period]; !ok {
		period = DefaultUsagePeriod
	}
	var acct string
	d.update(func(s *DashboardState) {
		if !s.Editing.Open() {
			return
		}
		acct = s.Editing.Value.AccountNumber
		s.EditDialog.UsageVisible = visible
		s.EditDialog.UsagePeriod = period
		s.EditDialog.UsageError = ""
		if !visible {
			s.EditDialog.Usage = nil
		}
	})
	if !visible || acct == "" {
		return nil
	}
	_, err := d.FetchUserUsage(ctx, acct, period)
	return err
}

// FetchUserUsage returns per-node usage of acct over period. Answers are
// cached for a short time.
func (d *Dashboard) FetchUserUsage(ctx context.Context, acct string, period UsagePeriod) (*models.UserUsage, error) {
	if !panel.ValidAccountNumber(acct) {
		return nil, panel.ErrMissingAccountNumber
	}

	key := usageKey(acct, period)
	usage, ok := d.usage.Get(key)
	if !ok {
		end := d.now()
		resp, err := d.api.UserUsage(ctx, acct, end.Add(-period.Duration()), end)
		if err != nil {
			d.update(func(s *DashboardState) {
				if s.Editing.Value.AccountNumber == acct && s.EditDialog.UsagePeriod == period {
					s.EditDialog.UsageError = errorText(err)
				}
			})
			return nil, fmt.Errorf("fetch user usage: %w", err)
		}
		usage = *resp
		d.usage.Set(key, usage)
	}

	d.update(func(s *DashboardState) {
		if s.Editing.Value.AccountNumber == acct && s.EditDialog.UsageVisible && s.EditDialog.UsagePeriod == period {
			u := usage
			s.EditDialog.Usage = &u
		}
	})
	return &usage, nil
}

func usageKey(acct string, period UsagePeriod) string {
	return acct + "|" + string(period)
}

func (d *Dashboard) invalidateUsage(acct string) {
	prefix := acct + "|"
	d.usage.DeleteByFunc(func(key string, _ models.UserUsage) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// Close releases the usage cache.
func (d *Dashboard) Close() {
	d.usage.Close()
}
