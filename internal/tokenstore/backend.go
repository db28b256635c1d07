// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

// Package tokenstore persists bearer tokens per actor kind and the dashboard
// items-per-page preference on a small key/value backend.
//
// Two backends exist: an in-memory map for tests and ephemeral runs, and
// BadgerDB for tokens that survive restarts.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// ErrKeyNotFound is returned by a Backend for a missing key.
var ErrKeyNotFound = errors.New("key not found")

// Backend is a durable string key/value store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete does not fail for a missing key.
	Delete(ctx context.Context, key string) error
}

// BackendType selects the storage backend.
type BackendType string

const (
	// BackendMemory keeps values in process memory only.
	BackendMemory BackendType = "memory"

	// BackendBadger stores values in a BadgerDB directory.
	BackendBadger BackendType = "badger"
)

// Open returns the backend for backendType. The returned close function must
// be called on shutdown; it is a no-op for the memory backend.
func Open(backendType BackendType, path string) (Backend, func() error, error) {
	switch backendType {
	case BackendBadger:
		opts := badger.DefaultOptions(path)
		opts.Logger = nil

		db, err := badger.Open(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger db for tokens: %w", err)
		}
		return NewBadgerBackend(db), db.Close, nil
	case BackendMemory, "":
		return NewMemoryBackend(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown token store backend %q", backendType)
	}
}

// MemoryBackend is a map guarded by a mutex.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string][]byte)}
}

// Get returns a copy of the stored value.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

// BadgerBackend stores values in BadgerDB under a fixed key prefix.
type BadgerBackend struct {
	db *badger.DB
}

const badgerKeyPrefix = "proxypanel:"

// NewBadgerBackend wraps an open database. The caller owns db.
func NewBadgerBackend(db *badger.DB) *BadgerBackend {
	return &BadgerBackend{db: db}
}

func (b *BadgerBackend) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BadgerBackend) Set(_ context.Context, key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(badgerKeyPrefix+key), value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		return nil
	})
}

func (b *BadgerBackend) Delete(_ context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(badgerKeyPrefix + key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	})
}

// sessionKeyPrefix namespaces the values of one browser session.
const sessionKeyPrefix = "session:"

type scopedBackend struct {
	backend Backend
	prefix  string
}

// Scoped returns a view of backend that keeps its keys apart from every
// other browser session. Tokens and preferences stored through it belong to
// sessionID only.
func Scoped(backend Backend, sessionID string) Backend {
	return &scopedBackend{backend: backend, prefix: sessionKeyPrefix + sessionID + ":"}
}

func (s *scopedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	return s.backend.Get(ctx, s.prefix+key)
}

func (s *scopedBackend) Set(ctx context.Context, key string, value []byte) error {
	return s.backend.Set(ctx, s.prefix+key, value)
}

func (s *scopedBackend) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, s.prefix+key)
}
