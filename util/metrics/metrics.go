// Package metrics defines the panel's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "antarex"

var (
	// BackendRequests counts outbound API calls by endpoint and outcome
	// (ok, authentication, authorization, validation, transport, conflict).
	BackendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_requests_total",
		Help:      "Calls to the Antarex API by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	BackendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Latency of calls to the Antarex API.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	BackendUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backend_up",
		Help:      "1 when the last health probe of the Antarex API succeeded.",
	})

	SessionExpirations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_expirations_total",
		Help:      "Sessions cleared because the API rejected their token.",
	})

	PolicyDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "policy_denials_total",
		Help:      "Actions refused client-side by the access policy.",
	}, []string{"action"})

	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Login attempts by result.",
	}, []string{"result"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_requests_total",
		Help:      "Requests refused with 429 by path.",
	}, []string{"path"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
