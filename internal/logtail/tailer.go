// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package logtail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/proxypanel/internal/logging"
	"github.com/tomtom215/proxypanel/internal/metrics"
)

const (
	DefaultRetryCount    = 5
	DefaultRetryInterval = 3 * time.Second

	handshakeTimeout = 10 * time.Second
	maxMessageSize   = 64 * 1024
)

// ErrGaveUp is returned by Serve once the retry budget is spent.
var ErrGaveUp = errors.New("log stream unavailable after retries")

// Sink receives log lines and the connection state.
type Sink interface {
	AppendLog(line string)
	SetLogConnected(connected bool)
}

// TokenSource supplies the bearer token sent with the handshake.
type TokenSource interface {
	Token(ctx context.Context) string
}

// Config configures a Tailer.
type Config struct {
	// BaseURL is the panel API URL; http(s) becomes ws(s).
	BaseURL string

	// Resolve returns the log stream path announced by the core. An empty
	// path counts as a failed attempt.
	Resolve func(ctx context.Context) (string, error)

	// RetryCount is the number of reconnect attempts before giving up.
	// Zero disables reconnecting; negative selects DefaultRetryCount.
	RetryCount int

	// RetryInterval is the fixed pause between attempts.
	// Default: 3s
	RetryInterval time.Duration
}

// Tailer streams core log lines into a Sink.
type Tailer struct {
	cfg    Config
	sink   Sink
	tokens TokenSource
	dialer *websocket.Dialer
}

// New builds a tailer. tokens may be nil.
func New(cfg Config, sink Sink, tokens TokenSource) *Tailer {
	if cfg.RetryCount < 0 {
		cfg.RetryCount = DefaultRetryCount
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	return &Tailer{
		cfg:    cfg,
		sink:   sink,
		tokens: tokens,
		dialer: &websocket.Dialer{
			HandshakeTimeout:  handshakeTimeout,
			EnableCompression: true,
		},
	}
}

// String names the service in supervisor logs.
func (t *Tailer) String() string {
	return "logtail"
}

// Serve tails the log until ctx is done or the retry budget is spent.
// A connection that delivered at least one message resets the budget.
func (t *Tailer) Serve(ctx context.Context) error {
	log := logging.Ctx(ctx).With().Str("component", "logtail").Logger()
	failures := 0

	for {
		received, err := t.tail(ctx)
		t.setConnected(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			failures = 0
		}
		failures++
		if failures > t.cfg.RetryCount {
			log.Warn().Err(err).Int("attempts", failures).Msg("Giving up on core log stream")
			return fmt.Errorf("%w: %v", ErrGaveUp, err)
		}

		log.Debug().Err(err).Int("attempt", failures).Dur("retry_in", t.cfg.RetryInterval).Msg("Core log stream lost, reconnecting")
		metrics.LogTailReconnects.Inc()
		select {
		case <-time.After(t.cfg.RetryInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// tail runs one connection. received reports whether any message arrived.
func (t *Tailer) tail(ctx context.Context) (received bool, err error) {
	target, err := t.streamURL(ctx)
	if err != nil {
		return false, err
	}

	header := http.Header{}
	if t.tokens != nil {
		if tok := t.tokens.Token(ctx); tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	conn, resp, err := t.dialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return false, fmt.Errorf("websocket dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// Unblock ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	conn.SetReadLimit(maxMessageSize)
	t.setConnected(true)
	logging.Ctx(ctx).Info().Str("component", "logtail").Msg("Core log stream connected")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return received, fmt.Errorf("log stream closed: %w", err)
			}
			return received, fmt.Errorf("read log stream: %w", err)
		}
		received = true
		for _, line := range strings.Split(strings.TrimRight(string(message), "\n"), "\n") {
			if line = strings.TrimRight(line, "\r"); line != "" {
				t.sink.AppendLog(line)
				metrics.LogTailLines.Inc()
			}
		}
	}
}

func (t *Tailer) streamURL(ctx context.Context) (string, error) {
	if t.cfg.Resolve == nil {
		return "", errors.New("no log stream resolver configured")
	}
	path, err := t.cfg.Resolve(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve log stream: %w", err)
	}
	if path == "" {
		return "", errors.New("core did not announce a log stream")
	}
	return StreamURL(t.cfg.BaseURL, path)
}

func (t *Tailer) setConnected(connected bool) {
	t.sink.SetLogConnected(connected)
	if connected {
		metrics.LogTailConnected.Set(1)
	} else {
		metrics.LogTailConnected.Set(0)
	}
}

// StreamURL joins the panel base URL and the announced path, switching the
// scheme to ws or wss. An absolute ws(s) path is returned unchanged.
func StreamURL(baseURL, path string) (string, error) {
	if strings.HasPrefix(path, "ws://") || strings.HasPrefix(path, "wss://") {
		return path, nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse panel URL: %w", err)
	}
	switch base.Scheme {
	case "https":
		base.Scheme = "wss"
	case "http":
		base.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported panel URL scheme %q", base.Scheme)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse log stream path: %w", err)
	}
	joined := *base
	joined.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	joined.RawQuery = ref.RawQuery
	return joined.String(), nil
}
