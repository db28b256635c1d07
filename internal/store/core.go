// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package store

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/zeebo/xxh3"

	"github.com/tomtom215/proxypanel/internal/metrics"
	"github.com/tomtom215/proxypanel/internal/models"
)

const coreStore = "core"

// CoreAPI is the part of the admin API the core store uses.
type CoreAPI interface {
	CoreInfo(ctx context.Context) (*models.CoreInfo, error)
	CoreConfig(ctx context.Context) (json.RawMessage, error)
	UpdateCoreConfig(ctx context.Context, raw json.RawMessage) error
	RestartCore(ctx context.Context) error
}

// CoreState is a snapshot of the core store.
type CoreState struct {
	Info       *models.CoreInfo `json:"info,omitempty"`
	Config     json.RawMessage  `json:"config,omitempty"`
	Draft      json.RawMessage  `json:"draft,omitempty"`
	Dirty      bool             `json:"dirty"`
	Saving     bool             `json:"saving"`
	Restarting bool             `json:"restarting"`
	Error      string           `json:"error,omitempty"`

	Logs          []string `json:"logs"`
	LogsConnected bool     `json:"logs_connected"`
}

// Core holds the proxy core runtime state, its configuration being edited
// and the tail of its live log.
type Core struct {
	*observers

	api  CoreAPI
	logs *LogBuffer

	mu         sync.Mutex
	state      CoreState
	configHash uint64
	info       generation
}

// NewCore builds the core store reading the live log from logs.
func NewCore(api CoreAPI, logs *LogBuffer) *Core {
	if logs == nil {
		logs = NewLogBuffer(0)
	}
	return &Core{
		observers: newObservers(coreStore),
		api:       api,
		logs:      logs,
	}
}

// State returns a snapshot.
func (c *Core) State() CoreState {
	c.mu.Lock()
	s := c.state
	c.mu.Unlock()

	s.Logs, s.LogsConnected = c.logs.Snapshot()
	return s
}

func (c *Core) update(fn func(s *CoreState)) {
	c.mu.Lock()
	fn(&c.state)
	c.mu.Unlock()
	c.notify()
}

// hashConfig hashes the compacted document so whitespace edits are not dirty.
func hashConfig(raw []byte) (uint64, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return 0, err
	}
	return xxh3.Hash(buf.Bytes()), nil
}

// FetchInfo loads the core version and run state.
func (c *Core) FetchInfo(ctx context.Context) error {
	c.mu.Lock()
	gen := c.info.issue()
	c.mu.Unlock()

	info, err := c.api.CoreInfo(ctx)

	c.mu.Lock()
	if !c.info.current(gen) {
		c.mu.Unlock()
		metrics.StoreStaleResults.WithLabelValues(coreStore, "info").Inc()
		return nil
	}
	if err != nil {
		c.state.Error = errorText(err)
	} else {
		c.state.Info = info
	}
	c.mu.Unlock()
	c.notify()

	if err != nil {
		return fmt.Errorf("fetch core info: %w", err)
	}
	return nil
}

// FetchConfig loads the configuration and replaces the draft with it.
func (c *Core) FetchConfig(ctx context.Context) error {
	raw, err := c.api.CoreConfig(ctx)
	if err != nil {
		c.update(func(s *CoreState) { s.Error = errorText(err) })
		return fmt.Errorf("fetch core config: %w", err)
	}
	h, err := hashConfig(raw)
	if err != nil {
		return fmt.Errorf("fetch core config: %w", err)
	}

	c.mu.Lock()
	c.configHash = h
	c.state.Config = raw
	c.state.Draft = raw
	c.state.Dirty = false
	c.state.Error = ""
	c.mu.Unlock()
	c.notify()
	return nil
}

// SetDraft replaces the edited configuration. Invalid JSON is kept as the
// draft so the editor does not lose input, and reported as a field error.
func (c *Core) SetDraft(raw []byte) error {
	h, herr := hashConfig(raw)
	c.update(func(s *CoreState) {
		s.Draft = append(json.RawMessage(nil), raw...)
		if herr != nil {
			s.Dirty = true
			s.Error = "Configuration is not valid JSON"
			return
		}
		s.Dirty = h != c.configHash
		s.Error = ""
	})
	if herr != nil {
		return &models.FieldError{Field: "config", Message: "must be valid JSON"}
	}
	return nil
}

// ResetDraft discards edits.
func (c *Core) ResetDraft() {
	c.update(func(s *CoreState) {
		s.Draft = s.Config
		s.Dirty = false
		s.Error = ""
	})
}

// SaveConfig uploads the draft and reloads the stored configuration.
func (c *Core) SaveConfig(ctx context.Context) error {
	var draft json.RawMessage
	busy := false
	c.update(func(s *CoreState) {
		if s.Saving {
			busy = true
			return
		}
		s.Saving = true
		draft = s.Draft
	})
	if busy {
		return ErrBusy
	}

	err := c.api.UpdateCoreConfig(ctx, draft)
	metrics.RecordMutation(coreStore, "save_config", err)
	c.update(func(s *CoreState) {
		s.Saving = false
		if err != nil {
			s.Error = errorText(err)
		}
	})
	if err != nil {
		return err
	}
	metrics.StoreRefetches.WithLabelValues(coreStore, "config").Inc()
	return c.FetchConfig(ctx)
}

// RestartCore restarts the proxy core and reloads its info.
func (c *Core) RestartCore(ctx context.Context) error {
	busy := false
	c.update(func(s *CoreState) {
		busy = s.Restarting
		s.Restarting = true
	})
	if busy {
		return ErrBusy
	}

	err := c.api.RestartCore(ctx)
	metrics.RecordMutation(coreStore, "restart", err)
	c.update(func(s *CoreState) {
		s.Restarting = false
		if err != nil {
			s.Error = errorText(err)
		}
	})
	if err != nil {
		return err
	}
	metrics.StoreRefetches.WithLabelValues(coreStore, "info").Inc()
	return c.FetchInfo(ctx)
}

// ClearLogs empties the shared log buffer.
func (c *Core) ClearLogs() {
	c.logs.Clear()
	c.notify()
}

// LogsWebsocket returns the log stream path announced by the core, if known.
func (c *Core) LogsWebsocket() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Info == nil {
		return ""
	}
	return c.state.Info.LogsWebsocket
}
