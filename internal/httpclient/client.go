// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

// Package httpclient is the panel API transport shared by the admin and portal
// API wrappers.
//
// Every request reads the current bearer token from a TokenSource, so a login
// or logout takes effect on the next call without rebuilding the client.
// Non-2xx answers become *APIError, everything else that prevents a response
// becomes *TransportError. There are no retries.
package httpclient

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/proxypanel/internal/logging"
	"github.com/tomtom215/proxypanel/internal/metrics"
	"github.com/tomtom215/proxypanel/internal/models"
)

// TokenSource yields the bearer token for the next request, or "".
type TokenSource interface {
	Token(ctx context.Context) string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) string

// Token calls f.
func (f TokenFunc) Token(ctx context.Context) string {
	return f(ctx)
}

// Config configures one client.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	Actor          string
	BreakerEnabled bool

	// RateLimit in requests per second; 0 disables pacing.
	RateLimit float64
	RateBurst int
}

// Client issues panel API requests on behalf of one actor.
type Client struct {
	rc             *resty.Client
	tokens         TokenSource
	actor          string
	timeout        time.Duration
	breaker        *gobreaker.CircuitBreaker[*resty.Response]
	limiter        *rate.Limiter
	onUnauthorized func(ctx context.Context)
}

// Option customizes a Client.
type Option func(*Client)

// WithUnauthorizedHandler is called after any 401/403 answer, typically to
// drop the stored token.
func WithUnauthorizedHandler(fn func(ctx context.Context)) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// WithHTTPClient replaces the underlying *http.Client. The configured
// timeout still applies when hc has none of its own.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		timeout := c.timeout
		if hc.Timeout > 0 {
			timeout = hc.Timeout
		}
		c.rc = resty.NewWithClient(hc).
			SetBaseURL(c.rc.BaseURL).
			SetTimeout(timeout).
			SetRetryCount(0).
			SetDisableWarn(true).
			SetHeader("Accept", "application/json")
	}
}

// New creates a client. tokens may be nil for unauthenticated use.
func New(cfg Config, tokens TokenSource, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		rc: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(timeout).
			SetRetryCount(0).
			SetDisableWarn(true).
			SetHeader("Accept", "application/json"),
		tokens:  tokens,
		actor:   cfg.Actor,
		timeout: timeout,
	}
	if cfg.BreakerEnabled {
		c.breaker = newBreaker("panel-api-" + cfg.Actor)
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Actor returns the actor kind this client authenticates as.
func (c *Client) Actor() string {
	return c.actor
}

// RequestOption adjusts a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	headers   map[string]string
	query     url.Values
	form      map[string]string
	multipart map[string]string
}

// WithHeader adds a request header.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

// WithQuery sets query parameters.
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) {
		o.query = q
	}
}

// WithForm sends fields as application/x-www-form-urlencoded instead of JSON.
func WithForm(fields map[string]string) RequestOption {
	return func(o *requestOptions) {
		o.form = fields
	}
}

// WithMultipart sends fields as multipart/form-data instead of JSON.
func WithMultipart(fields map[string]string) RequestOption {
	return func(o *requestOptions) {
		o.multipart = fields
	}
}

// Get decodes the JSON answer of GET path into out (which may be nil).
func (c *Client) Get(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return c.call(ctx, http.MethodGet, path, nil, out, opts)
}

// Post sends body as JSON unless a form option is given.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error {
	return c.call(ctx, http.MethodPost, path, body, out, opts)
}

// Put sends body as JSON unless a form option is given.
func (c *Client) Put(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error {
	return c.call(ctx, http.MethodPut, path, body, out, opts)
}

// Delete issues DELETE path.
func (c *Client) Delete(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return c.call(ctx, http.MethodDelete, path, nil, out, opts)
}

// Download fetches path as a file.
func (c *Client) Download(ctx context.Context, path string, opts ...RequestOption) (*models.Blob, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, opts)
	if err != nil {
		return nil, err
	}
	return &models.Blob{
		Data:        resp.Body(),
		ContentType: resp.Header().Get("Content-Type"),
		Filename:    filenameFrom(resp.Header().Get("Content-Disposition")),
	}, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}, opts []RequestOption) error {
	resp, err := c.do(ctx, method, path, body, opts)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, opts []RequestOption) (*resty.Response, error) {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	req := c.rc.R().SetContext(ctx)
	if c.tokens != nil {
		if token := c.tokens.Token(ctx); token != "" {
			req.SetAuthToken(token)
		}
	}
	if len(o.headers) > 0 {
		req.SetHeaders(o.headers)
	}
	if len(o.query) > 0 {
		req.SetQueryParamsFromValues(o.query)
	}

	switch {
	case o.form != nil:
		req.SetFormData(o.form)
	case o.multipart != nil:
		req.SetMultipartFormData(o.multipart)
	case body != nil:
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		req.SetHeader("Content-Type", "application/json").SetBody(payload)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Method: method, Path: path, Err: err}
		}
	}

	log := logging.Ctx(ctx)
	start := time.Now()

	resp, err := c.execute(method, path, func() (*resty.Response, error) {
		resp, err := req.Execute(method, path)
		if err != nil {
			return nil, &TransportError{Method: method, Path: path, Err: err}
		}
		if resp.IsError() {
			detail, fields := parseErrorBody(resp.StatusCode(), resp.Body())
			return resp, &APIError{
				StatusCode: resp.StatusCode(),
				Method:     method,
				Path:       path,
				Detail:     detail,
				Fields:     fields,
			}
		}
		return resp, nil
	})

	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}
	metrics.RecordPanelRequest(c.actor, method, status, time.Since(start))

	if err != nil {
		if IsUnauthorized(err) {
			metrics.PanelAPIUnauthorized.WithLabelValues(c.actor).Inc()
			log.Warn().Str("method", method).Str("path", path).Int("status", status).Msg("Panel API rejected token")
			if c.onUnauthorized != nil {
				c.onUnauthorized(ctx)
			}
		} else {
			log.Debug().Err(err).Str("method", method).Str("path", path).Msg("Panel API request failed")
		}
		return nil, err
	}

	log.Debug().Str("method", method).Str("path", path).Int("status", status).Dur("took", time.Since(start)).Msg("Panel API request")
	return resp, nil
}

func filenameFrom(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
