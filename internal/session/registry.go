// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

// Package session gives every browser its own set of stores.
//
// A browser is identified by a random id kept in an HttpOnly cookie. The
// Registry maps that id to the value built for it (the admin store bundle or
// the portal store) and forgets ids that stay idle longer than the TTL.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/maypok86/otter"
)

const (
	// DefaultCapacity is the maximum number of live sessions per registry.
	DefaultCapacity = 10000

	// DefaultTTL is how long an idle session is kept.
	DefaultTTL = 24 * time.Hour
)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Capacity int
	TTL      time.Duration
}

// Registry holds one value per session id.
type Registry[T any] struct {
	build func(id string) (T, error)

	// mu makes get-or-build atomic so one id never gets two values.
	mu    sync.Mutex
	cache otter.Cache[string, T]
}

// NewRegistry creates a registry that calls build for unknown ids. onDrop,
// if set, runs when a session is forgotten, expires or is evicted.
func NewRegistry[T any](cfg RegistryConfig, build func(id string) (T, error), onDrop func(id string, v T)) (*Registry[T], error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	builder := otter.MustBuilder[string, T](cfg.Capacity).
		Cost(func(_ string, _ T) uint32 { return 1 }).
		WithTTL(cfg.TTL)
	if onDrop != nil {
		builder = builder.DeletionListener(func(id string, v T, cause otter.DeletionCause) {
			// Get refreshes the TTL by re-setting the same value.
			if cause != otter.Replaced {
				onDrop(id, v)
			}
		})
	}
	cache, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build session cache: %w", err)
	}
	return &Registry[T]{build: build, cache: cache}, nil
}

// Get returns the value for id, building it on first use, and restarts its
// idle timer.
func (r *Registry[T]) Get(id string) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.cache.Get(id)
	if !ok {
		var err error
		if v, err = r.build(id); err != nil {
			return v, fmt.Errorf("build session %s: %w", id, err)
		}
	}
	r.cache.Set(id, v)
	return v, nil
}

// Lookup returns the value for id without building one.
func (r *Registry[T]) Lookup(id string) (T, bool) {
	if id == "" {
		var zero T
		return zero, false
	}
	return r.cache.Get(id)
}

// Forget drops id.
func (r *Registry[T]) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(id)
}

// Range calls fn for every live session until fn returns false.
func (r *Registry[T]) Range(fn func(id string, v T) bool) {
	r.cache.Range(fn)
}

// Len returns the number of live sessions.
func (r *Registry[T]) Len() int {
	return r.cache.Size()
}

// Close stops the cache's background expiry.
func (r *Registry[T]) Close() {
	r.cache.Close()
}
