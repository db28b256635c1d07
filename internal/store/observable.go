// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package store

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/tomtom215/proxypanel/internal/logging"
)

// observers is the subscriber registry shared by all stores.
type observers struct {
	name string
	subs *xsync.Map[uint64, func()]
	next atomic.Uint64
}

func newObservers(name string) *observers {
	return &observers{name: name, subs: xsync.NewMap[uint64, func()]()}
}

// Subscribe registers fn to run after every committed change and returns a
// function that removes it. fn runs without the store lock held and may read
// State().
func (o *observers) Subscribe(fn func()) (unsubscribe func()) {
	id := o.next.Add(1)
	o.subs.Store(id, fn)
	return func() { o.subs.Delete(id) }
}

func (o *observers) notify() {
	o.subs.Range(func(id uint64, fn func()) bool {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.Error().Str("store", o.name).Uint64("subscriber", id).Interface("panic", r).Msg("Store subscriber panicked")
				}
			}()
			fn()
		}()
		return true
	})
}

// generation is a latest-wins sequence for one list fetch.
type generation struct {
	latest uint64
}

// issue returns the number of a new fetch. Callers hold the store lock.
func (g *generation) issue() uint64 {
	g.latest++
	return g.latest
}

// current reports whether gen is still the latest. Callers hold the store lock.
func (g *generation) current(gen uint64) bool {
	return gen == g.latest
}
