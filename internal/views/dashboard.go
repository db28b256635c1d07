// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package views

import (
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/tomtom215/proxypanel/internal/models"
	"github.com/tomtom215/proxypanel/internal/store"
)

func dialogOf[T any](s store.Slot[T]) Dialog {
	return Dialog{
		Open:        s.Open(),
		Submitting:  s.Submitting(),
		Error:       s.Error,
		FieldErrors: s.FieldErrors,
	}
}

// UserRow is one line of the users table.
type UserRow struct {
	AccountNumber   string
	Status          models.UserStatus
	Used            string
	Limit           string
	UsedPercent     int
	Expire          string
	Online          string
	SubscriptionURL string
	Note            string
}

func userRow(u models.User, now time.Time) UserRow {
	row := UserRow{
		AccountNumber:   u.AccountNumber,
		Status:          u.Status,
		Used:            FormatBytes(u.UsedTraffic),
		Limit:           FormatLimit(u.DataLimit.Bytes),
		SubscriptionURL: u.SubscriptionURL,
		Note:            u.Note,
		Expire:          "Never",
		Online:          "never",
	}
	if u.DataLimit.Valid && u.DataLimit.Bytes > 0 {
		row.UsedPercent = int(u.UsedTraffic * 100 / u.DataLimit.Bytes)
		if row.UsedPercent > 100 {
			row.UsedPercent = 100
		}
	}
	if u.Expire.Valid {
		row.Expire = expiryText(u.Expire.Time, now)
	}
	if u.OnlineAt != nil {
		row.Online = relativeTo(*u.OnlineAt, now)
	}
	return row
}

func expiryText(t, now time.Time) string {
	if !t.After(now) {
		return "Expired " + t.Format("Jan 2, 2006")
	}
	days := int(t.Sub(now) / (24 * time.Hour))
	switch days {
	case 0:
		return "Expires today"
	case 1:
		return "Expires in 1 day"
	default:
		return "Expires in " + strconv.Itoa(days) + " days"
	}
}

// UsersTable is the users list with its pager.
type UsersTable struct {
	Compact bool
	Rows    []UserRow
	Total   int
	Page    int
	Pages   int
	Loading bool
	Filter  models.UserFilter
	PrevURL string
	NextURL string

	Columns   []Column
	PageSizes []int
}

// Column is a users table header. Sortable columns link to the list sorted
// by them, flipping the direction when they are already the sort column.
type Column struct {
	Label      string
	SortURL    string
	Sorted     bool
	Descending bool
}

// PageSizes are the items-per-page choices.
var PageSizes = []int{10, 20, 50, 100}

func columns(f models.UserFilter, layout Layout) []Column {
	defs := []struct{ label, sort string }{
		{"Account", models.SortAccountNumber},
		{"Status", ""},
		{"Usage", models.SortUsedTraffic},
		{"Expiry", models.SortExpire},
		{"Online", ""},
		{"", ""},
	}
	cols := make([]Column, 0, len(defs))
	for _, d := range defs {
		c := Column{Label: d.label}
		if d.sort != "" {
			c.Sorted = f.Sort == d.sort
			c.Descending = c.Sorted && f.Descending
			sorted := f
			sorted.Sort = d.sort
			sorted.Descending = c.Sorted && !f.Descending
			c.SortURL = pageURL(sorted, 0, layout)
		}
		cols = append(cols, c)
	}
	return cols
}

func pageSizes(current int) []int {
	sizes := append([]int(nil), PageSizes...)
	for _, n := range sizes {
		if n == current {
			return sizes
		}
	}
	if current > 0 {
		sizes = append(sizes, current)
		sort.Ints(sizes)
	}
	return sizes
}

// UserDialog is the create/edit modal.
type UserDialog struct {
	Dialog
	Editing      bool
	User         UserRow
	Form         UserFormView
	UsageVisible bool
	UsagePeriod  store.UsagePeriod
	UsagePeriods []store.UsagePeriod
	Usage        []UsageBar
	UsageTotal   string
	UsageError   string
}

// UserFormView holds the values the user dialog inputs start with.
type UserFormView struct {
	Status    models.UserStatus
	DataLimit string
	Expire    string
	OnHold    string
	Strategy  models.ResetStrategy
	Protocols map[string]bool
}

// Option is one choice of a select or checkbox group.
type Option struct {
	Value string
	Label string
}

// Choices offered by the user dialog.
var (
	DialogStatuses = []models.UserStatus{models.UserStatusActive, models.UserStatusDisabled, models.UserStatusOnHold}

	ResetStrategies = []Option{
		{string(models.ResetNoReset), "never"},
		{string(models.ResetDay), "daily"},
		{string(models.ResetWeek), "weekly"},
		{string(models.ResetMonth), "monthly"},
		{string(models.ResetYear), "yearly"},
	}

	Protocols = []Option{
		{models.ProtocolVLESS, "VLESS"},
		{models.ProtocolVMess, "VMess"},
		{models.ProtocolTrojan, "Trojan"},
		{models.ProtocolShadowsocks, "Shadowsocks"},
	}
)

func userFormView(f models.UserForm) UserFormView {
	v := UserFormView{
		Status:    f.Status,
		Strategy:  f.DataLimitResetStrategy,
		Protocols: make(map[string]bool, len(f.Protocols)),
	}
	if v.Strategy == "" {
		v.Strategy = models.ResetNoReset
	}
	if f.DataLimitGB > 0 {
		v.DataLimit = strconv.FormatFloat(f.DataLimitGB, 'f', -1, 64)
	}
	if f.ExpireDays > 0 {
		v.Expire = strconv.Itoa(f.ExpireDays)
	}
	if f.OnHoldExpireDays > 0 {
		v.OnHold = strconv.Itoa(f.OnHoldExpireDays)
	}
	for _, p := range f.Protocols {
		v.Protocols[p] = true
	}
	return v
}

// UsageBar is one node's share in the usage chart.
type UsageBar struct {
	Node    string
	Used    string
	Percent int
}

// DashboardPage is the admin home page.
type DashboardPage struct {
	Nav      Nav
	Error    string
	Stats    *StatsView
	Users    UsersTable
	Dialog   UserDialog
	Delete   Confirm
	Reset    Confirm
	Revoke   Confirm
	Layout   Layout
	Statuses []models.UserStatus
}

// StatsView is the header summary.
type StatsView struct {
	Version       string
	TotalUsers    string
	ActiveUsers   string
	OnHoldUsers   string
	ExpiredUsers  string
	LimitedUsers  string
	DisabledUsers string
	Memory        string
	CPU           string
	Incoming      string
	Outgoing      string
}

func statsView(s *models.SystemStats) *StatsView {
	if s == nil {
		return nil
	}
	return &StatsView{
		Version:       s.Version,
		TotalUsers:    strconv.Itoa(s.TotalUser),
		ActiveUsers:   strconv.Itoa(s.UsersActive),
		OnHoldUsers:   strconv.Itoa(s.UsersOnHold),
		ExpiredUsers:  strconv.Itoa(s.UsersExpired),
		LimitedUsers:  strconv.Itoa(s.UsersLimited),
		DisabledUsers: strconv.Itoa(s.UsersDisabled),
		Memory:        FormatBytes(s.MemUsed) + " / " + FormatBytes(s.MemTotal),
		CPU:           strconv.FormatFloat(s.CPUUsage, 'f', 1, 64) + "% of " + strconv.Itoa(s.CPUCores) + " cores",
		Incoming:      FormatBytes(s.IncomingBandwidth),
		Outgoing:      FormatBytes(s.OutgoingBandwidth),
	}
}

// Dashboard builds the admin home page from a dashboard snapshot.
func Dashboard(st store.DashboardState, nav Nav, layout Layout, now time.Time) DashboardPage {
	rows := make([]UserRow, 0, len(st.Users))
	for _, u := range st.Users {
		rows = append(rows, userRow(u, now))
	}

	page := DashboardPage{
		Nav:    nav,
		Error:  st.Error,
		Stats:  statsView(st.Stats),
		Layout: layout,
		Users: UsersTable{
			Compact: layout.Compact(),
			Rows:    rows,
			Total:   st.Total,
			Page:    st.Page(),
			Pages:   st.Pages(),
			Loading: st.Loading,
			Filter:  st.Filter,

			Columns:   columns(st.Filter, layout),
			PageSizes: pageSizes(st.Filter.Limit),
		},
		Statuses: []models.UserStatus{
			models.UserStatusActive, models.UserStatusDisabled, models.UserStatusLimited,
			models.UserStatusExpired, models.UserStatusOnHold,
		},
	}
	if page.Users.Page > 1 {
		page.Users.PrevURL = pageURL(st.Filter, st.Filter.Offset-st.Filter.Limit, layout)
	}
	if page.Users.Page < page.Users.Pages {
		page.Users.NextURL = pageURL(st.Filter, st.Filter.Offset+st.Filter.Limit, layout)
	}

	switch {
	case st.Editing.Open():
		page.Dialog = userDialog(st, now)
	case st.Creating.Open():
		page.Dialog = UserDialog{Dialog: dialogOf(st.Creating), Form: userFormView(models.UserForm{Status: models.UserStatusActive})}
	}

	page.Delete = Confirm{
		Dialog:  dialogOf(st.Deleting),
		Title:   "Delete user",
		Message: "Delete " + st.Deleting.Value.AccountNumber + "? This cannot be undone.",
		Action:  "/users/delete/confirm",
		Cancel:  "/users/delete/cancel",
	}
	page.Reset = Confirm{
		Dialog:  dialogOf(st.ResetUsage),
		Title:   "Reset usage",
		Message: "Reset the data usage of " + st.ResetUsage.Value.AccountNumber + "?",
		Action:  "/users/reset/confirm",
		Cancel:  "/users/reset/cancel",
	}
	page.Revoke = Confirm{
		Dialog:  dialogOf(st.RevokeSub),
		Title:   "Revoke subscription",
		Message: "Revoke the subscription link of " + st.RevokeSub.Value.AccountNumber + "? Clients must import the new link.",
		Action:  "/users/revoke/confirm",
		Cancel:  "/users/revoke/cancel",
	}
	return page
}

func userDialog(st store.DashboardState, now time.Time) UserDialog {
	d := UserDialog{
		Dialog:       dialogOf(st.Editing),
		Editing:      true,
		User:         userRow(st.Editing.Value, now),
		Form:         userFormView(models.FormOf(st.Editing.Value, now)),
		UsageVisible: st.EditDialog.UsageVisible,
		UsagePeriod:  st.EditDialog.UsagePeriod,
		UsagePeriods: []store.UsagePeriod{store.UsagePeriodDay, store.UsagePeriodWeek, store.UsagePeriodMonth, store.UsagePeriodQuarter},
		UsageError:   st.EditDialog.UsageError,
	}
	if u := st.EditDialog.Usage; u != nil && d.UsageVisible {
		d.Usage = usageBars(*u)
		d.UsageTotal = FormatBytes(u.Total())
	}
	return d
}

func usageBars(u models.UserUsage) []UsageBar {
	total := u.Total()
	usages := append([]models.NodeUsage(nil), u.Usages...)
	sort.SliceStable(usages, func(i, j int) bool { return usages[i].UsedTraffic > usages[j].UsedTraffic })

	bars := make([]UsageBar, 0, len(usages))
	for _, n := range usages {
		bar := UsageBar{Node: n.NodeName, Used: FormatBytes(n.UsedTraffic)}
		if bar.Node == "" {
			bar.Node = "node " + strconv.Itoa(n.NodeID)
		}
		if total > 0 {
			bar.Percent = int(n.UsedTraffic * 100 / total)
		}
		bars = append(bars, bar)
	}
	return bars
}

func pageURL(f models.UserFilter, offset int, layout Layout) string {
	if offset < 0 {
		offset = 0
	}
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Sort != "" {
		q.Set("sort", f.Sort)
		q.Set("descending", strconv.FormatBool(f.Descending))
	}
	if layout.Width > 0 {
		q.Set("width", strconv.Itoa(layout.Width))
	}
	return "/?" + q.Encode()
}

func relativeTo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "online"
	case d < time.Hour:
		return strconv.Itoa(int(d/time.Minute)) + "m ago"
	case d < 24*time.Hour:
		return strconv.Itoa(int(d/time.Hour)) + "h ago"
	default:
		return strconv.Itoa(int(d/(24*time.Hour))) + "d ago"
	}
}
