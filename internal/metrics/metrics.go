// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Panel API (outbound) metrics
	PanelAPIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panel_api_requests_total",
			Help: "Requests issued to the panel API",
		},
		[]string{"actor", "method", "status"},
	)

	PanelAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "panel_api_request_duration_seconds",
			Help:    "Panel API request latency",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"actor", "method"},
	)

	PanelAPIUnauthorized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panel_api_unauthorized_total",
			Help: "Responses that invalidated the stored session token",
		},
		[]string{"actor"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Store metrics
	StoreRefetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_refetches_total",
			Help: "List refetches issued by stores",
		},
		[]string{"store", "resource"},
	)

	StoreStaleResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_stale_results_discarded_total",
			Help: "Fetch results dropped because a newer fetch was issued",
		},
		[]string{"store", "resource"},
	)

	StoreMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_mutations_total",
			Help: "Store mutator outcomes",
		},
		[]string{"store", "action", "result"},
	)

	// HTTP server metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served, labelled by route pattern",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_requests",
			Help: "Requests currently being served",
		},
	)

	HTTPRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by a rate limiter",
		},
		[]string{"limiter"},
	)

	// Log tail WebSocket metrics
	LogTailConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logtail_connected",
			Help: "Core log WebSocket state (0=disconnected, 1=connected)",
		},
	)

	LogTailReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logtail_reconnect_attempts_total",
			Help: "Core log WebSocket reconnect attempts",
		},
	)

	LogTailLines = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logtail_lines_received_total",
			Help: "Core log lines received",
		},
	)
)

// RecordPanelRequest records one panel API round trip. status is 0 for transport failures.
func RecordPanelRequest(actor, method string, status int, duration time.Duration) {
	label := "transport_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	PanelAPIRequests.WithLabelValues(actor, method, label).Inc()
	PanelAPIRequestDuration.WithLabelValues(actor, method).Observe(duration.Seconds())
}

// RecordMutation records the outcome of a store mutator.
func RecordMutation(store, action string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	StoreMutations.WithLabelValues(store, action, result).Inc()
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		HTTPActiveRequests.Inc()
		return
	}
	HTTPActiveRequests.Dec()
}
