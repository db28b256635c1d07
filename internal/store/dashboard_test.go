// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package store

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/proxypanel/internal/metrics"
	"github.com/tomtom215/proxypanel/internal/models"
	"github.com/tomtom215/proxypanel/internal/panel"
	"github.com/tomtom215/proxypanel/internal/tokenstore"
	"github.com/tomtom215/proxypanel/internal/validation"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDashboard(t *testing.T, api UsersAPI) *Dashboard {
	t.Helper()
	d, err := NewDashboard(api, nil, DashboardOptions{PageSize: 10, Now: func() time.Time { return fixedNow }})
	if err != nil {
		t.Fatalf("NewDashboard: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func ptr[T any](v T) *T { return &v }

func TestFilterPatch_Apply(t *testing.T) {
	base := models.UserFilter{Search: "al", Offset: 40, Limit: 10, Sort: "created_at"}

	tests := []struct {
		name   string
		patch  FilterPatch
		offset int
		check  func(t *testing.T, f models.UserFilter)
	}{
		{
			name:   "page change keeps offset",
			patch:  FilterPatch{Offset: ptr(20)},
			offset: 20,
		},
		{
			name:   "search resets offset",
			patch:  FilterPatch{Search: ptr("  bob ")},
			offset: 0,
			check: func(t *testing.T, f models.UserFilter) {
				if f.Search != "bob" {
					t.Errorf("Search = %q, want trimmed bob", f.Search)
				}
			},
		},
		{
			name:   "unchanged search still resets offset",
			patch:  FilterPatch{Search: ptr("al")},
			offset: 0,
		},
		{
			name:   "status resets offset",
			patch:  FilterPatch{Status: ptr(models.UserStatusExpired)},
			offset: 0,
		},
		{
			name:   "limit resets offset even with explicit offset",
			patch:  FilterPatch{Limit: ptr(25), Offset: ptr(50)},
			offset: 0,
			check: func(t *testing.T, f models.UserFilter) {
				if f.Limit != 25 {
					t.Errorf("Limit = %d, want 25", f.Limit)
				}
			},
		},
		{
			name:   "sort keeps offset",
			patch:  FilterPatch{Sort: ptr("-used_traffic"), Descending: ptr(true)},
			offset: 40,
		},
		{
			name:   "negative offset clamps",
			patch:  FilterPatch{Offset: ptr(-10)},
			offset: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.patch.Apply(base)
			if got.Offset != tt.offset {
				t.Errorf("Offset = %d, want %d", got.Offset, tt.offset)
			}
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}

func TestDashboard_OnFilterChangeRefetches(t *testing.T) {
	api := newFakeAdmin()
	var seen []models.UserFilter
	api.listUsers = func(f models.UserFilter) (*models.UsersResponse, error) {
		seen = append(seen, f)
		return &models.UsersResponse{Users: []models.User{{AccountNumber: "a1"}}, Total: 31}, nil
	}
	d := newTestDashboard(t, api)

	if err := d.OnFilterChange(context.Background(), FilterPatch{Offset: ptr(30)}); err != nil {
		t.Fatalf("OnFilterChange: %v", err)
	}
	if err := d.OnFilterChange(context.Background(), FilterPatch{Search: ptr("a")}); err != nil {
		t.Fatalf("OnFilterChange: %v", err)
	}

	if len(seen) != 2 {
		t.Fatalf("ListUsers calls = %d, want 2", len(seen))
	}
	if seen[0].Offset != 30 || seen[1].Offset != 0 {
		t.Errorf("offsets = %d,%d, want 30,0", seen[0].Offset, seen[1].Offset)
	}

	st := d.State()
	if st.Total != 31 || len(st.Users) != 1 {
		t.Errorf("state users=%d total=%d", len(st.Users), st.Total)
	}
	if st.Pages() != 4 || st.Page() != 1 {
		t.Errorf("Pages() = %d Page() = %d, want 4 and 1", st.Pages(), st.Page())
	}
	if st.Loading {
		t.Error("Loading should be false after fetch")
	}
}

func TestDashboard_MutationsRefetchOnce(t *testing.T) {
	user := models.User{AccountNumber: "acct-1"}
	form := models.UserForm{DataLimitGB: 1}

	tests := []struct {
		name   string
		open   func(d *Dashboard)
		run    func(d *Dashboard) error
		call   string
		closed func(s DashboardState) bool
	}{
		{
			name:   "create",
			open:   func(d *Dashboard) { d.OnCreateUser(true) },
			run:    func(d *Dashboard) error { return d.CreateUser(context.Background(), form) },
			call:   "CreateUser",
			closed: func(s DashboardState) bool { return !s.Creating.Open() },
		},
		{
			name:   "edit",
			open:   func(d *Dashboard) { d.OnEditingUser(&user) },
			run:    func(d *Dashboard) error { return d.EditUser(context.Background(), form) },
			call:   "ModifyUser",
			closed: func(s DashboardState) bool { return !s.Editing.Open() },
		},
		{
			name:   "delete",
			open:   func(d *Dashboard) { d.OnDeletingUser(&user) },
			run:    func(d *Dashboard) error { return d.DeleteUser(context.Background()) },
			call:   "DeleteUser",
			closed: func(s DashboardState) bool { return !s.Deleting.Open() },
		},
		{
			name:   "reset usage",
			open:   func(d *Dashboard) { d.OnResetUsageUser(&user) },
			run:    func(d *Dashboard) error { return d.ResetUserUsage(context.Background()) },
			call:   "ResetUserUsage",
			closed: func(s DashboardState) bool { return !s.ResetUsage.Open() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAdmin()
			d := newTestDashboard(t, api)

			tt.open(d)
			if err := tt.run(d); err != nil {
				t.Fatalf("mutation: %v", err)
			}
			if got := api.count(tt.call); got != 1 {
				t.Errorf("%s calls = %d, want 1", tt.call, got)
			}
			if got := api.count("ListUsers"); got != 1 {
				t.Errorf("ListUsers calls = %d, want exactly 1", got)
			}
			if got := api.count("SystemStats"); got != 1 {
				t.Errorf("SystemStats calls = %d, want 1", got)
			}
			if !tt.closed(d.State()) {
				t.Error("slot should be idle after success")
			}
		})
	}
}

func TestDashboard_CreateUserConvertsGigabytes(t *testing.T) {
	api := newFakeAdmin()
	var got models.UserRequest
	api.createUser = func(req models.UserRequest) (*models.User, error) {
		got = req
		return &models.User{}, nil
	}
	d := newTestDashboard(t, api)

	d.OnCreateUser(true)
	if err := d.CreateUser(context.Background(), models.UserForm{DataLimitGB: 5, ExpireDays: 30}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if got.DataLimit.Bytes != 5368709120 {
		t.Errorf("DataLimit = %d, want 5368709120", got.DataLimit.Bytes)
	}
	if want := fixedNow.Add(30 * 24 * time.Hour).Unix(); got.Expire.Unix() != want {
		t.Errorf("Expire = %d, want %d", got.Expire.Unix(), want)
	}
}

func TestDashboard_CreateValidationKeepsDialog(t *testing.T) {
	tests := []struct {
		name string
		gb   float64
	}{
		{"negative", -1},
		{"beyond int64 bytes", 9e9},
		{"far beyond int64 bytes", 1e12},
		{"infinite", math.Inf(1)},
		{"not a number", math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAdmin()
			d := newTestDashboard(t, api)

			d.OnCreateUser(true)
			err := d.CreateUser(context.Background(), models.UserForm{DataLimitGB: tt.gb})
			var verr *validation.RequestValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want validation error", err)
			}
			if api.total() != 0 {
				t.Errorf("API calls = %d, want 0", api.total())
			}
			st := d.State()
			if st.Creating.Phase != SlotSelected {
				t.Errorf("Creating phase = %v, want selected", st.Creating.Phase)
			}
			if _, ok := st.Creating.FieldErrors["data_limit"]; !ok {
				t.Errorf("FieldErrors = %v, want data_limit", st.Creating.FieldErrors)
			}
		})
	}
}

func TestDashboard_CreateAndEditAreExclusive(t *testing.T) {
	d := newTestDashboard(t, newFakeAdmin())

	d.OnEditingUser(&models.User{AccountNumber: "a"})
	d.OnCreateUser(true)
	if st := d.State(); st.Editing.Open() || !st.Creating.Open() {
		t.Errorf("after create: editing=%v creating=%v", st.Editing.Open(), st.Creating.Open())
	}

	d.OnEditingUser(&models.User{AccountNumber: "b"})
	if st := d.State(); !st.Editing.Open() || st.Creating.Open() {
		t.Errorf("after edit: editing=%v creating=%v", st.Editing.Open(), st.Creating.Open())
	}
}

func TestDashboard_MissingAccountSendsNothing(t *testing.T) {
	for _, acct := range []string{"", "undefined", "  "} {
		t.Run("account="+acct, func(t *testing.T) {
			api := newFakeAdmin()
			d := newTestDashboard(t, api)
			user := models.User{AccountNumber: acct}

			d.OnDeletingUser(&user)
			if err := d.DeleteUser(context.Background()); !errors.Is(err, panel.ErrMissingAccountNumber) {
				t.Errorf("DeleteUser err = %v", err)
			}
			d.OnEditingUser(&user)
			if err := d.EditUser(context.Background(), models.UserForm{}); !errors.Is(err, panel.ErrMissingAccountNumber) {
				t.Errorf("EditUser err = %v", err)
			}
			d.OnRevokeSubUser(&user)
			if err := d.RevokeSubscription(context.Background()); !errors.Is(err, panel.ErrMissingAccountNumber) {
				t.Errorf("RevokeSubscription err = %v", err)
			}
			if _, err := d.FetchUserUsage(context.Background(), acct, UsagePeriodWeek); !errors.Is(err, panel.ErrMissingAccountNumber) {
				t.Errorf("FetchUserUsage err = %v", err)
			}

			if api.total() != 0 {
				t.Errorf("API calls = %d, want 0", api.total())
			}
			if !d.State().Deleting.Open() {
				t.Error("delete slot should stay open with the error")
			}
		})
	}
}

func TestDashboard_DeleteConfirmationFlow(t *testing.T) {
	api := newFakeAdmin()
	fail := true
	api.deleteUser = func(string) error {
		if fail {
			return apiError(409, "User is in use")
		}
		return nil
	}
	d := newTestDashboard(t, api)
	user := models.User{AccountNumber: "acct-9"}

	if err := d.DeleteUser(context.Background()); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("confirm without selection: err = %v", err)
	}

	d.OnDeletingUser(&user)
	if st := d.State(); st.Deleting.Phase != SlotSelected || st.Deleting.Value.AccountNumber != "acct-9" {
		t.Fatalf("after open: %+v", st.Deleting)
	}

	if err := d.DeleteUser(context.Background()); err == nil {
		t.Fatal("expected failure")
	}
	st := d.State()
	if st.Deleting.Phase != SlotSelected || st.Deleting.Error != "User is in use" {
		t.Errorf("after failure: phase=%v error=%q", st.Deleting.Phase, st.Deleting.Error)
	}
	if api.count("ListUsers") != 0 {
		t.Error("failed delete must not refetch")
	}

	fail = false
	if err := d.DeleteUser(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if d.State().Deleting.Open() {
		t.Error("slot should be idle after success")
	}
	if api.count("DeleteUser") != 2 || api.count("ListUsers") != 1 {
		t.Errorf("DeleteUser=%d ListUsers=%d", api.count("DeleteUser"), api.count("ListUsers"))
	}
}

func TestDashboard_CancelClosesSlot(t *testing.T) {
	d := newTestDashboard(t, newFakeAdmin())
	d.OnDeletingUser(&models.User{AccountNumber: "x"})
	d.OnDeletingUser(nil)
	if d.State().Deleting.Open() {
		t.Error("cancel should close the slot")
	}
}

func TestDashboard_RevokePatchesInPlace(t *testing.T) {
	api := newFakeAdmin()
	api.listUsers = func(models.UserFilter) (*models.UsersResponse, error) {
		return &models.UsersResponse{Users: []models.User{
			{AccountNumber: "a", SubscriptionURL: "/sub/old-a"},
			{AccountNumber: "b", SubscriptionURL: "/sub/old-b"},
		}, Total: 2}, nil
	}
	api.revokeSub = func(acct string) (*models.User, error) {
		return &models.User{AccountNumber: acct, SubscriptionURL: "/sub/new-" + acct}, nil
	}
	d := newTestDashboard(t, api)
	if err := d.FetchUsers(context.Background()); err != nil {
		t.Fatal(err)
	}

	d.OnRevokeSubUser(&models.User{AccountNumber: "b"})
	if err := d.RevokeSubscription(context.Background()); err != nil {
		t.Fatalf("RevokeSubscription: %v", err)
	}

	if got := api.count("ListUsers"); got != 1 {
		t.Errorf("ListUsers calls = %d, want 1 (no refetch)", got)
	}
	u, _ := d.State().User("b")
	if u.SubscriptionURL != "/sub/new-b" {
		t.Errorf("SubscriptionURL = %q, want patched", u.SubscriptionURL)
	}
	if a, _ := d.State().User("a"); a.SubscriptionURL != "/sub/old-a" {
		t.Errorf("other user changed: %q", a.SubscriptionURL)
	}
}

func TestDashboard_RevokeRefetchesOnMismatch(t *testing.T) {
	responses := map[string]*models.User{
		"nil":      nil,
		"mismatch": {AccountNumber: "someone-else"},
	}
	for name, resp := range responses {
		t.Run(name, func(t *testing.T) {
			api := newFakeAdmin()
			api.listUsers = func(models.UserFilter) (*models.UsersResponse, error) {
				return &models.UsersResponse{Users: []models.User{{AccountNumber: "b"}}, Total: 1}, nil
			}
			api.revokeSub = func(string) (*models.User, error) { return resp, nil }
			d := newTestDashboard(t, api)
			if err := d.FetchUsers(context.Background()); err != nil {
				t.Fatal(err)
			}

			d.OnRevokeSubUser(&models.User{AccountNumber: "b"})
			if err := d.RevokeSubscription(context.Background()); err != nil {
				t.Fatalf("RevokeSubscription: %v", err)
			}
			if got := api.count("ListUsers"); got != 2 {
				t.Errorf("ListUsers calls = %d, want 2", got)
			}
		})
	}
}

func TestDashboard_StaleFetchDiscarded(t *testing.T) {
	api := newFakeAdmin()
	release := make(chan struct{})
	started := make(chan struct{})
	api.listUsers = func(f models.UserFilter) (*models.UsersResponse, error) {
		if f.Search == "slow" {
			close(started)
			<-release
			return &models.UsersResponse{Users: []models.User{{AccountNumber: "stale"}}, Total: 1}, nil
		}
		return &models.UsersResponse{Users: []models.User{{AccountNumber: "fresh"}}, Total: 1}, nil
	}
	d := newTestDashboard(t, api)
	before := testutil.ToFloat64(metrics.StoreStaleResults.WithLabelValues(dashboardStore, "users"))

	done := make(chan error, 1)
	go func() {
		done <- d.OnFilterChange(context.Background(), FilterPatch{Search: ptr("slow")})
	}()
	<-started

	if err := d.OnFilterChange(context.Background(), FilterPatch{Search: ptr("fast")}); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("stale fetch returned %v, want nil", err)
	}

	st := d.State()
	if len(st.Users) != 1 || st.Users[0].AccountNumber != "fresh" {
		t.Errorf("Users = %+v, want the fresh page", st.Users)
	}
	after := testutil.ToFloat64(metrics.StoreStaleResults.WithLabelValues(dashboardStore, "users"))
	if after-before != 1 {
		t.Errorf("stale counter delta = %v, want 1", after-before)
	}
}

func TestDashboard_UsageCache(t *testing.T) {
	api := newFakeAdmin()
	var windows []time.Duration
	api.userUsage = func(acct string, start, end time.Time) (*models.UserUsage, error) {
		windows = append(windows, end.Sub(start))
		return &models.UserUsage{AccountNumber: acct, Usages: []models.NodeUsage{{NodeID: 1, UsedTraffic: 100}}}, nil
	}
	d := newTestDashboard(t, api)
	user := models.User{AccountNumber: "acct-1"}
	d.OnEditingUser(&user)

	ctx := context.Background()
	if err := d.ShowUsage(ctx, true, UsagePeriodMonth); err != nil {
		t.Fatalf("ShowUsage: %v", err)
	}
	if err := d.ShowUsage(ctx, true, UsagePeriodMonth); err != nil {
		t.Fatalf("ShowUsage: %v", err)
	}
	if api.count("UserUsage") != 1 {
		t.Errorf("UserUsage calls = %d, want 1 (cached)", api.count("UserUsage"))
	}
	if windows[0] != 30*24*time.Hour {
		t.Errorf("window = %v, want 30 days", windows[0])
	}
	if st := d.State(); st.EditDialog.Usage == nil || st.EditDialog.Usage.Total() != 100 {
		t.Errorf("EditDialog.Usage = %+v", st.EditDialog.Usage)
	}

	if err := d.EditUser(ctx, models.UserForm{}); err != nil {
		t.Fatalf("EditUser: %v", err)
	}
	if st := d.State(); st.EditDialog.UsageVisible || st.EditDialog.UsagePeriod != DefaultUsagePeriod {
		t.Errorf("dialog state not reset: %+v", st.EditDialog)
	}
	if _, err := d.FetchUserUsage(ctx, "acct-1", UsagePeriodMonth); err != nil {
		t.Fatal(err)
	}
	if api.count("UserUsage") != 2 {
		t.Errorf("UserUsage calls = %d, want 2 after edit invalidated the cache", api.count("UserUsage"))
	}
}

func TestDashboard_ItemsPerPagePersisted(t *testing.T) {
	backend := tokenstore.NewMemoryBackend()
	prefs := tokenstore.NewPreferences(backend)
	api := newFakeAdmin()

	d, err := NewDashboard(api, prefs, DashboardOptions{PageSize: 10})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	d.OnFilterChange(context.Background(), FilterPatch{Offset: ptr(20)})
	if err := d.SetItemsPerPage(context.Background(), 50); err != nil {
		t.Fatalf("SetItemsPerPage: %v", err)
	}
	if f := d.State().Filter; f.Limit != 50 || f.Offset != 0 {
		t.Errorf("filter = %+v, want limit 50 offset 0", f)
	}

	restored, err := NewDashboard(api, prefs, DashboardOptions{PageSize: 10})
	if err != nil {
		t.Fatal(err)
	}
	defer restored.Close()
	restored.Restore(context.Background())
	if got := restored.State().Filter.Limit; got != 50 {
		t.Errorf("restored limit = %d, want 50", got)
	}

	if err := d.SetItemsPerPage(context.Background(), 0); err == nil {
		t.Error("expected error for zero page size")
	}
}

func TestDashboard_SubscribersNotified(t *testing.T) {
	d := newTestDashboard(t, newFakeAdmin())
	count := countNotifications(t, d.Subscribe)

	d.OnCreateUser(true)
	d.OnCreateUser(false)
	if got := count(); got != 2 {
		t.Errorf("notifications = %d, want 2", got)
	}

	unsubscribe := d.Subscribe(func() { panic("boom") })
	d.OnCreateUser(true)
	unsubscribe()
	if got := count(); got != 3 {
		t.Errorf("notifications = %d, want 3 despite panicking subscriber", got)
	}
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDashboard_CreateRefusedWhileEditSubmits(t *testing.T) {
	api := newFakeAdmin()
	release := make(chan struct{})
	api.modifyUser = func(acct string, _ models.UserRequest) (*models.User, error) {
		<-release
		return &models.User{AccountNumber: acct}, nil
	}
	d := newTestDashboard(t, api)

	d.OnEditingUser(&models.User{AccountNumber: "a"})
	done := make(chan error, 1)
	go func() { done <- d.EditUser(context.Background(), models.UserForm{DataLimitGB: 1}) }()
	waitFor(t, func() bool { return d.State().Editing.Submitting() })

	d.OnCreateUser(true)
	if st := d.State(); st.Creating.Open() || !st.Editing.Submitting() {
		t.Errorf("create opened during edit submit: creating=%v editing=%v", st.Creating.Open(), st.Editing.Phase)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("EditUser: %v", err)
	}
	d.OnCreateUser(true)
	if !d.State().Creating.Open() {
		t.Error("create should open once the edit finished")
	}
}

func TestDashboard_EditRefusedWhileCreateSubmits(t *testing.T) {
	api := newFakeAdmin()
	release := make(chan struct{})
	api.createUser = func(req models.UserRequest) (*models.User, error) {
		<-release
		return &models.User{AccountNumber: "new"}, nil
	}
	d := newTestDashboard(t, api)

	d.OnCreateUser(true)
	done := make(chan error, 1)
	go func() { done <- d.CreateUser(context.Background(), models.UserForm{DataLimitGB: 1}) }()
	waitFor(t, func() bool { return d.State().Creating.Submitting() })

	d.OnEditingUser(&models.User{AccountNumber: "a"})
	if st := d.State(); st.Editing.Open() {
		t.Error("edit opened during create submit")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
}

func TestDashboard_EditKeepsStoredSettings(t *testing.T) {
	api := newFakeAdmin()
	var sent models.UserRequest
	api.modifyUser = func(acct string, req models.UserRequest) (*models.User, error) {
		sent = req
		return &models.User{AccountNumber: acct}, nil
	}
	d := newTestDashboard(t, api)

	user := models.User{
		AccountNumber:          "u1",
		Status:                 models.UserStatusActive,
		DataLimit:              models.Bytes(5 * models.BytesPerGB),
		Expire:                 models.At(fixedNow.Add(30 * 24 * time.Hour)),
		DataLimitResetStrategy: models.ResetWeek,
		Proxies:                map[string]models.ProxySettings{"vless": {ID: "1111", Flow: "xtls-rprx-vision"}},
	}
	d.OnEditingUser(&user)

	form := models.FormOf(user, fixedNow)
	form.Note = "renewed"
	if err := d.EditUser(context.Background(), form); err != nil {
		t.Fatalf("EditUser: %v", err)
	}

	if sent.DataLimit != user.DataLimit || !sent.Expire.Time.Equal(user.Expire.Time) {
		t.Errorf("limit/expiry changed: %+v %+v", sent.DataLimit, sent.Expire)
	}
	if sent.DataLimitResetStrategy != models.ResetWeek || sent.Note != "renewed" {
		t.Errorf("sent = %+v", sent)
	}
	if got := sent.Proxies["vless"]; got.ID != "1111" || got.Flow != "xtls-rprx-vision" {
		t.Errorf("vless settings = %+v", got)
	}
}

func TestDashboard_ItemsPerPageBounds(t *testing.T) {
	d := newTestDashboard(t, newFakeAdmin())
	for _, n := range []int{0, -1, models.MaxUsersLimit + 1} {
		err := d.SetItemsPerPage(context.Background(), n)
		var fieldErr *models.FieldError
		if !errors.As(err, &fieldErr) || fieldErr.Field != "limit" {
			t.Errorf("SetItemsPerPage(%d) err = %v", n, err)
		}
	}
	if err := d.SetItemsPerPage(context.Background(), models.MaxUsersLimit); err != nil {
		t.Errorf("SetItemsPerPage(max) err = %v", err)
	}
}
