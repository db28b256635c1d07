// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

/*
Package store holds the application state behind the dashboard and the
client portal.

Each store is built once in main and handed to the routers. State is only
changed through mutator methods; readers take a snapshot with State() and
may register a callback with Subscribe to learn about changes.

# Slots

A Slot holds the entity a dialog operates on and moves through three phases:

	Idle ──Select──▶ Selected ──submit──▶ Submitting ──ok──▶ Idle
	                    ▲                      │
	                    └────────fail──────────┘

Cancel returns a Selected slot to Idle. A failed submission keeps the entity
and records the error text (and field errors for 422 answers) so the dialog
can show them.

# Refetching

Successful create, edit, delete and reset mutations refetch the list they
touched exactly once. List fetches carry a generation number and only the
response of the latest generation is applied; older responses are dropped
and counted in store_stale_results_discarded_total.

# Locking

Every store guards its state with one mutex. Network calls run outside the
lock, so a slow panel never blocks readers.
*/
package store
