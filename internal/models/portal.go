// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package models

// Account is the signed-in end user as seen by the client portal.
type Account struct {
	AccountNumber   string        `json:"account_number"`
	Status          UserStatus    `json:"status"`
	DataLimit       OptionalBytes `json:"data_limit"`
	UsedTraffic     int64         `json:"used_traffic"`
	Expire          OptionalTime  `json:"expire"`
	SubscriptionURL string        `json:"subscription_url"`
	PlanID          string        `json:"plan_id,omitempty"`
}

// RemainingBytes returns the unused quota, or -1 when unlimited.
func (a Account) RemainingBytes() int64 {
	if a.DataLimit.Unlimited() {
		return -1
	}
	if rem := a.DataLimit.Bytes - a.UsedTraffic; rem > 0 {
		return rem
	}
	return 0
}

// Plan is a purchasable subscription.
type Plan struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Price        float64       `json:"price"`
	Currency     string        `json:"currency"`
	DataLimit    OptionalBytes `json:"data_limit"`
	DurationDays int           `json:"duration_days"`
}

// Server is a node offered to portal users together with its services.
type Server struct {
	NodeID   int             `json:"node_id"`
	Name     string          `json:"name"`
	Address  string          `json:"address"`
	Status   NodeStatus      `json:"status"`
	Services []ServiceConfig `json:"services"`
}

// HasService reports whether serviceID belongs to this server.
func (s Server) HasService(serviceID int) bool {
	for _, svc := range s.Services {
		if svc.ID == serviceID {
			return true
		}
	}
	return false
}

// CheckoutRequest is the body of POST /client-portal/checkout.
type CheckoutRequest struct {
	PlanID string `json:"plan_id"`
}

// Checkout is the response of POST /client-portal/checkout.
type Checkout struct {
	PaymentURL string `json:"payment_url"`
	OrderID    string `json:"order_id"`
	Status     string `json:"status"`
}
