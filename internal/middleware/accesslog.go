// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/tomtom215/proxypanel/internal/logging"
)

// DefaultSlowRequest is the latency above which requests log at warn level.
const DefaultSlowRequest = time.Second

// AccessLog logs one structured line per request through the request's
// logging context. Server errors log at error level, slow requests at warn
// and everything else at debug.
func AccessLog(slow time.Duration) func(http.Handler) http.Handler {
	if slow <= 0 {
		slow = DefaultSlowRequest
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			status := statusOf(ww)

			var event *zerolog.Event
			logger := logging.Ctx(r.Context())
			switch {
			case status >= http.StatusInternalServerError:
				event = logger.Error()
			case duration > slow:
				event = logger.Warn().Bool("slow", true)
			default:
				event = logger.Debug()
			}
			event.
				Str("method", r.Method).
				Str("route", routePattern(r)).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", duration).
				Msg("HTTP request")
		})
	}
}
