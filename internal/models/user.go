// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package models

import (
	"net/url"
	"sort"
	"strconv"
	"time"
)

// UserStatus is the subscriber state reported by the panel.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
	UserStatusLimited  UserStatus = "limited"
	UserStatusExpired  UserStatus = "expired"
	UserStatusOnHold   UserStatus = "on_hold"
)

// ResetStrategy controls periodic data limit resets.
type ResetStrategy string

const (
	ResetNoReset ResetStrategy = "no_reset"
	ResetDay     ResetStrategy = "day"
	ResetWeek    ResetStrategy = "week"
	ResetMonth   ResetStrategy = "month"
	ResetYear    ResetStrategy = "year"
)

// Protocol names used as keys in proxies and inbounds.
const (
	ProtocolVLESS       = "vless"
	ProtocolVMess       = "vmess"
	ProtocolTrojan      = "trojan"
	ProtocolShadowsocks = "shadowsocks"
)

// ProxySettings holds the per-protocol credentials of a user. Which fields
// are meaningful depends on the protocol key it is stored under.
type ProxySettings struct {
	ID       string `json:"id,omitempty"`
	Flow     string `json:"flow,omitempty"`
	Password string `json:"password,omitempty"`
	Method   string `json:"method,omitempty"`
}

// User is a proxy service subscriber.
type User struct {
	AccountNumber          string                   `json:"account_number"`
	Status                 UserStatus               `json:"status"`
	DataLimit              OptionalBytes            `json:"data_limit"`
	UsedTraffic            int64                    `json:"used_traffic"`
	LifetimeUsedTraffic    int64                    `json:"lifetime_used_traffic"`
	Expire                 OptionalTime             `json:"expire"`
	OnHoldExpireDuration   int64                    `json:"on_hold_expire_duration,omitempty"`
	OnHoldTimeout          *time.Time               `json:"on_hold_timeout,omitempty"`
	DataLimitResetStrategy ResetStrategy            `json:"data_limit_reset_strategy"`
	Proxies                map[string]ProxySettings `json:"proxies"`
	Inbounds               map[string][]string      `json:"inbounds"`
	Note                   string                   `json:"note,omitempty"`
	SubscriptionURL        string                   `json:"subscription_url"`
	CreatedAt              *time.Time               `json:"created_at,omitempty"`
	OnlineAt               *time.Time               `json:"online_at,omitempty"`
}

// UserRequest is the body of POST /user and PUT /user/{acct}.
type UserRequest struct {
	Status                 UserStatus               `json:"status,omitempty"`
	DataLimit              OptionalBytes            `json:"data_limit"`
	Expire                 OptionalTime             `json:"expire"`
	OnHoldExpireDuration   int64                    `json:"on_hold_expire_duration,omitempty"`
	OnHoldTimeout          *time.Time               `json:"on_hold_timeout,omitempty"`
	DataLimitResetStrategy ResetStrategy            `json:"data_limit_reset_strategy,omitempty"`
	Proxies                map[string]ProxySettings `json:"proxies,omitempty"`
	Inbounds               map[string][]string      `json:"inbounds,omitempty"`
	Note                   string                   `json:"note"`
}

// UserForm is what the user dialog submits. Data limits are entered in GB and
// expiry in days from now; both are converted by Request.
type UserForm struct {
	Status                 UserStatus          `json:"status" validate:"omitempty,oneof=active disabled on_hold"`
	DataLimitGB            float64             `json:"data_limit" validate:"gte=0,lte=8589934591"`
	ExpireDays             int                 `json:"expire" validate:"gte=0,lte=36500"`
	OnHoldExpireDays       int                 `json:"on_hold_expire_duration" validate:"gte=0,lte=36500"`
	DataLimitResetStrategy ResetStrategy       `json:"data_limit_reset_strategy" validate:"omitempty,oneof=no_reset day week month year"`
	Protocols              []string            `json:"proxies" validate:"dive,oneof=vless vmess trojan shadowsocks"`
	Inbounds               map[string][]string `json:"inbounds"`
	Note                   string              `json:"note" validate:"max=500"`
}

// Request converts the form into the API body. now anchors relative expiry.
func (f UserForm) Request(now time.Time) UserRequest {
	req := UserRequest{
		Status:                 f.Status,
		DataLimit:              Bytes(GBToBytes(f.DataLimitGB)),
		DataLimitResetStrategy: f.DataLimitResetStrategy,
		Inbounds:               f.Inbounds,
		Note:                   f.Note,
	}
	if f.Status == UserStatusOnHold {
		req.OnHoldExpireDuration = int64(f.OnHoldExpireDays) * 86400
	} else if f.ExpireDays > 0 {
		req.Expire = At(now.Add(time.Duration(f.ExpireDays) * 24 * time.Hour))
	}
	if len(f.Protocols) > 0 {
		req.Proxies = make(map[string]ProxySettings, len(f.Protocols))
		for _, p := range f.Protocols {
			req.Proxies[p] = ProxySettings{}
		}
	}
	return req
}

// ExpiresInDays returns the whole days left until the user expires, rounded
// up. Unset or past expiry gives 0.
func (u User) ExpiresInDays(now time.Time) int {
	if !u.Expire.Valid || !u.Expire.Time.After(now) {
		return 0
	}
	left := u.Expire.Time.Sub(now)
	days := int(left / (24 * time.Hour))
	if left%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// FormOf returns the dialog values that describe u as it is now.
func FormOf(u User, now time.Time) UserForm {
	form := UserForm{
		ExpireDays:             u.ExpiresInDays(now),
		OnHoldExpireDays:       int(u.OnHoldExpireDuration / 86400),
		DataLimitResetStrategy: u.DataLimitResetStrategy,
		Note:                   u.Note,
	}
	// limited and expired are set by the panel, not chosen; an empty status
	// leaves them as they are.
	switch u.Status {
	case UserStatusActive, UserStatusDisabled, UserStatusOnHold:
		form.Status = u.Status
	}
	if u.DataLimit.Valid {
		form.DataLimitGB = BytesToGB(u.DataLimit.Bytes)
	}
	for p := range u.Proxies {
		form.Protocols = append(form.Protocols, p)
	}
	sort.Strings(form.Protocols)
	return form
}

// EditRequest converts the form into the PUT body for current. Values the
// dialog was prefilled with and did not change keep their exact stored value,
// and protocols that stay enabled keep their credentials and inbounds.
func (f UserForm) EditRequest(current User, now time.Time) UserRequest {
	req := f.Request(now)
	prefill := FormOf(current, now)

	if current.DataLimit.Valid && f.DataLimitGB == prefill.DataLimitGB {
		req.DataLimit = current.DataLimit
	}
	switch {
	case f.Status == UserStatusOnHold:
		if f.OnHoldExpireDays == prefill.OnHoldExpireDays && current.OnHoldExpireDuration > 0 {
			req.OnHoldExpireDuration = current.OnHoldExpireDuration
		}
	case f.ExpireDays == prefill.ExpireDays:
		req.Expire = current.Expire
	}

	for p := range req.Proxies {
		if settings, ok := current.Proxies[p]; ok {
			req.Proxies[p] = settings
		}
		if tags, ok := current.Inbounds[p]; ok && req.Inbounds[p] == nil {
			if req.Inbounds == nil {
				req.Inbounds = make(map[string][]string, len(req.Proxies))
			}
			req.Inbounds[p] = tags
		}
	}
	return req
}

// UsersResponse is the body of GET /users.
type UsersResponse struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
}

// NodeUsage is one node's share of a user's traffic.
type NodeUsage struct {
	NodeID      int    `json:"node_id"`
	NodeName    string `json:"node_name"`
	UsedTraffic int64  `json:"used_traffic"`
}

// UserUsage is the body of GET /user/{acct}/usage.
type UserUsage struct {
	AccountNumber string      `json:"account_number"`
	Usages        []NodeUsage `json:"usages"`
}

// Total sums all node usages.
func (u UserUsage) Total() int64 {
	var total int64
	for _, n := range u.Usages {
		total += n.UsedTraffic
	}
	return total
}

// UserFilter selects which page of users is requested.
type UserFilter struct {
	Search     string     `json:"search"`
	Offset     int        `json:"offset"`
	Limit      int        `json:"limit"`
	Sort       string     `json:"sort"`
	Descending bool       `json:"descending"`
	Status     UserStatus `json:"status"`
}

// Columns the users list can be sorted by.
const (
	SortAccountNumber = "account_number"
	SortUsedTraffic   = "used_traffic"
	SortDataLimit     = "data_limit"
	SortExpire        = "expire"
	SortCreatedAt     = "created_at"
)

// MaxUsersLimit is the largest page size requested from the panel.
const MaxUsersLimit = 1000

// ValidUserSort reports whether column is a sortable users column. The empty
// column selects the panel's default order.
func ValidUserSort(column string) bool {
	switch column {
	case "", SortAccountNumber, SortUsedTraffic, SortDataLimit, SortExpire, SortCreatedAt:
		return true
	}
	return false
}

// Query encodes the filter as GET /users parameters. Empty values are omitted.
func (f UserFilter) Query() url.Values {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(f.Offset))
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
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
	return q
}
