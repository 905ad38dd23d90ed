// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package authz

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"
)

var (
	// Authorization decision metrics.

	authzDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailhook_authz_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"outcome", "reason"},
	)

	authzDecisionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "trailhook_authz_decision_duration_seconds",
			Help: "Duration of authorization decisions in seconds",
			// Local decisions are microseconds; remote ones bounded by
			// the evaluator timeout.
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5},
		},
	)

	authzErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailhook_authz_errors_total",
			Help: "Total number of authorization errors by kind",
		},
		[]string{"kind"},
	)

	// Decision cache metrics.

	cacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailhook_authz_cache_hits_total",
			Help: "Total number of decision cache hits",
		},
	)

	cacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailhook_authz_cache_misses_total",
			Help: "Total number of decision cache misses",
		},
	)

	cacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailhook_authz_cache_evictions_total",
			Help: "Total number of decision cache evictions",
		},
		[]string{"cause"},
	)

	cacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trailhook_authz_cache_entries",
			Help: "Current number of entries in the decision cache",
		},
	)

	// Circuit breaker metrics.

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trailhook_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)

	breakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailhook_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"breaker", "from", "to"},
	)

	breakerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailhook_breaker_requests_total",
			Help: "Total number of circuit breaker guarded requests by result",
		},
		[]string{"breaker", "result"},
	)

	// Remote evaluation metrics.

	remoteEvalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trailhook_policy_evaluation_duration_seconds",
			Help:    "Duration of remote policy evaluations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"result"},
	)

	// Audit emitter metrics.

	auditEmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailhook_audit_records_emitted_total",
			Help: "Total number of audit records queued for emission",
		},
	)

	auditDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailhook_audit_records_dropped_total",
			Help: "Total number of audit records dropped due to a full buffer",
		},
	)
)

// recordDecision records a terminal authorization decision.
func recordDecision(outcome Outcome, reason Reason, latency time.Duration) {
	authzDecisionsTotal.WithLabelValues(string(outcome), string(reason)).Inc()
	authzDecisionDuration.Observe(latency.Seconds())
}

// recordAuthzError counts a classified authorization error.
func recordAuthzError(kind string) {
	authzErrorsTotal.WithLabelValues(kind).Inc()
}

func recordCacheHit()  { cacheHitsTotal.Inc() }
func recordCacheMiss() { cacheMissesTotal.Inc() }

func recordCacheEviction(cause string) {
	cacheEvictionsTotal.WithLabelValues(cause).Inc()
}

func setCacheSize(n int) {
	cacheSize.Set(float64(n))
}

func setBreakerState(name string, state gobreaker.State) {
	breakerState.WithLabelValues(name).Set(stateToFloat(state))
}

func recordBreakerTransition(name, from, to string) {
	breakerTransitionsTotal.WithLabelValues(name, from, to).Inc()
}

func recordBreakerRequest(name, result string) {
	breakerRequestsTotal.WithLabelValues(name, result).Inc()
}

// observeRemoteEvaluation records a remote evaluation attempt. Rejected
// calls (circuit open) are labeled separately from real failures.
func observeRemoteEvaluation(latency time.Duration, err error) {
	result := "success"
	switch {
	case err == nil:
	case IsCircuitOpen(err):
		result = "rejected"
	default:
		result = "failure"
	}
	remoteEvalDuration.WithLabelValues(result).Observe(latency.Seconds())
}

func recordAuditEmitted() { auditEmittedTotal.Inc() }
func recordAuditDropped() { auditDroppedTotal.Inc() }
