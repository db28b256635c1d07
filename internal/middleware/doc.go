// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

/*
Package middleware provides the HTTP middleware of the ProxyPanel server.

Key Components:

  - RequestID: request_id, correlation_id and client IP in the request and
    logging contexts, echoed in the X-Request-ID response header
  - PrometheusMetrics: request count, latency and in-flight gauge labelled by
    chi route pattern
  - AccessLog: one structured zerolog line per request, warn when slow
  - Chi: go-chi/cors and go-chi/httprate factories (CORS, login rate limit)

Middleware Stack:

The router mounts them in this order:

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog(middleware.DefaultSlowRequest))
	r.Use(chimiddleware.Compress(5))
	r.Use(m.CORS())

and wraps the sign-in routes with m.LoginRateLimit("admin_login").

Thread Safety:

All middleware is safe for concurrent use. Per-request state lives in the
request context; metrics use Prometheus collectors.

See Also:

  - internal/router: route table using this stack
  - internal/metrics: Prometheus metrics definitions
  - internal/logging: context-aware logger used by AccessLog
*/
package middleware
