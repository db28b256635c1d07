// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package views

import (
	"strconv"
	"time"

	"github.com/tomtom215/proxypanel/internal/models"
	"github.com/tomtom215/proxypanel/internal/store"
)

// PortalPage is the subscriber's home page.
type PortalPage struct {
	Nav     Nav
	Compact bool
	Error   string

	AccountNumber   string
	Status          models.UserStatus
	Used            string
	Remaining       string
	Limit           string
	UsedPercent     int
	Expire          string
	SubscriptionURL string

	Plans       []PlanRow
	Servers     []ServerRow
	Selected    bool
	CheckingOut bool
	PaymentURL  string
}

// PlanRow is one purchasable plan.
type PlanRow struct {
	ID       string
	Name     string
	Price    string
	Limit    string
	Duration string
}

// ServerRow is an offered server and its services.
type ServerRow struct {
	NodeID   int
	Name     string
	Address  string
	Status   models.NodeStatus
	Services []PortalServiceRow
}

// PortalServiceRow is a service the subscriber can download a config for.
type PortalServiceRow struct {
	ID       int
	Tag      string
	Protocol string
	Port     int
	Selected bool
}

// Portal builds the portal home page.
func Portal(st store.PortalState, layout Layout, now time.Time) PortalPage {
	page := PortalPage{
		Nav:         Nav{Section: "portal", Portal: true},
		Compact:     layout.Compact(),
		Error:       st.Error,
		Selected:    st.Selection != nil,
		CheckingOut: st.CheckingOut,
	}
	if a := st.Account; a != nil {
		page.Nav.User = a.AccountNumber
		page.AccountNumber = a.AccountNumber
		page.Status = a.Status
		page.Used = FormatBytes(a.UsedTraffic)
		page.Limit = FormatLimit(a.DataLimit.Bytes)
		page.SubscriptionURL = a.SubscriptionURL
		if rem := a.RemainingBytes(); rem < 0 {
			page.Remaining = "Unlimited"
		} else {
			page.Remaining = FormatBytes(rem)
			if a.DataLimit.Bytes > 0 {
				page.UsedPercent = int(min(a.UsedTraffic*100/a.DataLimit.Bytes, 100))
			}
		}
		page.Expire = "Never"
		if a.Expire.Valid {
			page.Expire = expiryText(a.Expire.Time, now)
		}
	}
	if st.Checkout != nil {
		page.PaymentURL = st.Checkout.PaymentURL
	}

	for _, p := range st.Plans {
		page.Plans = append(page.Plans, PlanRow{
			ID:       p.ID,
			Name:     p.Name,
			Price:    strconv.FormatFloat(p.Price, 'f', 2, 64) + " " + p.Currency,
			Limit:    FormatLimit(p.DataLimit.Bytes),
			Duration: strconv.Itoa(p.DurationDays) + " days",
		})
	}

	for _, srv := range st.Servers {
		row := ServerRow{NodeID: srv.NodeID, Name: srv.Name, Address: srv.Address, Status: srv.Status}
		for _, svc := range srv.Services {
			row.Services = append(row.Services, PortalServiceRow{
				ID:       svc.ID,
				Tag:      svc.Tag,
				Protocol: svc.Protocol,
				Port:     svc.Port,
				Selected: st.Selection != nil && st.Selection.NodeID == srv.NodeID && st.Selection.ServiceID == svc.ID,
			})
		}
		page.Servers = append(page.Servers, row)
	}
	return page
}
