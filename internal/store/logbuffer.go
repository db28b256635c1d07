// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package store

import "sync"

const logBufferStore = "logs"

// LogBuffer is the process-wide tail of the core log. The log tailer writes
// it and every admin session's Core store reads it.
type LogBuffer struct {
	*observers

	size int

	mu        sync.Mutex
	lines     []string
	connected bool
}

// NewLogBuffer keeps at most size lines.
func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = 500
	}
	return &LogBuffer{observers: newObservers(logBufferStore), size: size}
}

// AppendLog adds one live log line, dropping the oldest beyond the buffer size.
func (b *LogBuffer) AppendLog(line string) {
	b.mu.Lock()
	b.lines = append(b.lines, line)
	if over := len(b.lines) - b.size; over > 0 {
		b.lines = append([]string(nil), b.lines[over:]...)
	}
	b.mu.Unlock()
	b.notify()
}

// SetLogConnected records whether the live log stream is up.
func (b *LogBuffer) SetLogConnected(connected bool) {
	b.mu.Lock()
	b.connected = connected
	b.mu.Unlock()
	b.notify()
}

// Clear empties the buffer.
func (b *LogBuffer) Clear() {
	b.mu.Lock()
	b.lines = nil
	b.mu.Unlock()
	b.notify()
}

// Snapshot returns a copy of the lines and the connection state.
func (b *LogBuffer) Snapshot() (lines []string, connected bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...), b.connected
}
