// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package httpclient

import (
	"errors"
	"time"

	"github.com/go-resty/resty/v2"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/proxypanel/internal/logging"
	"github.com/tomtom215/proxypanel/internal/metrics"
)

// newBreaker builds the circuit breaker for one panel API client.
//
// Only 5xx answers and transport failures count as failures; a 4xx is the
// panel working as intended.
func newBreaker(name string) *gobreaker.CircuitBreaker[*resty.Response] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		// Opens when failure rate >= 60% with minimum 10 requests
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.StatusCode < 500
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})
}

// execute runs fn through the breaker when one is configured.
func (c *Client) execute(method, path string, fn func() (*resty.Response, error)) (*resty.Response, error) {
	if c.breaker == nil {
		return fn()
	}

	resp, err := c.breaker.Execute(fn)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(c.breaker.Name(), "rejected").Inc()
		return nil, &TransportError{Method: method, Path: path, Err: ErrCircuitOpen}
	case err != nil && !c.breakerSuccess(err):
		metrics.CircuitBreakerRequests.WithLabelValues(c.breaker.Name(), "failure").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(c.breaker.Name(), "success").Inc()
	}
	return resp, err
}

func (c *Client) breakerSuccess(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode < 500
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
