// SPDX-License-Identifier: MIT

// Package metrics holds the Prometheus collectors for the laboratory domain.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analysesTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedlab_analysis_transitions_total",
		Help: "Analysis lifecycle transitions by kind and target state",
	}, []string{"kind", "state"})

	analysesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedlab_analysis_created_total",
		Help: "Analyses registered by kind",
	}, []string{"kind"})

	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedlab_logins_total",
		Help: "Login attempts by outcome",
	}, []string{"outcome"}) // outcome=success|bad_credentials|locked|pending|inactive|requires_2fa|bad_code

	secondFactorTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedlab_second_factor_total",
		Help: "Second factor verifications by method and outcome",
	}, []string{"method", "outcome"}) // method=totp|backup_code|trusted_device

	notificationsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedlab_notifications_total",
		Help: "Notifications created and pushed by channel",
	}, []string{"channel"}) // channel=store|sse|mail

	sseSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seedlab_sse_subscribers",
		Help: "Current number of open notification streams",
	})

	importRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedlab_import_rows_total",
		Help: "Legacy import rows by outcome",
	}, []string{"outcome"}) // outcome=inserted|skipped

	dashboardCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedlab_dashboard_cache_total",
		Help: "Dashboard stats lookups by cache result",
	}, []string{"result"}) // result=hit|miss

	configValidationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seedlab_config_validation_errors_total",
		Help: "Total number of configuration validation errors",
	})
)

func IncAnalysisCreated(kind string) { analysesCreated.WithLabelValues(kind).Inc() }

func IncAnalysisTransition(kind, state string) {
	analysesTransitions.WithLabelValues(kind, state).Inc()
}

func IncLogin(outcome string) { loginsTotal.WithLabelValues(outcome).Inc() }

func IncSecondFactor(method string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	secondFactorTotal.WithLabelValues(method, outcome).Inc()
}

func IncNotification(channel string) { notificationsDelivered.WithLabelValues(channel).Inc() }

func IncSSESubscribers() { sseSubscribers.Inc() }
func DecSSESubscribers() { sseSubscribers.Dec() }

// RecordImport counts the rows of one legacy import.
func RecordImport(inserted, skipped int) {
	importRows.WithLabelValues("inserted").Add(float64(inserted))
	importRows.WithLabelValues("skipped").Add(float64(skipped))
}

func IncDashboardCache(hit bool) {
	if hit {
		dashboardCache.WithLabelValues("hit").Inc()
		return
	}
	dashboardCache.WithLabelValues("miss").Inc()
}

func IncConfigValidationError() { configValidationErrors.Inc() }

var (
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "seedlab_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedlab_circuit_breaker_trips_total",
		Help: "Circuit breaker transitions to open by reason",
	}, []string{"name", "reason"})
)

// SetCircuitBreakerState records the breaker state for name.
func SetCircuitBreakerState(name, state string) {
	v := 0.0
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	circuitBreakerState.WithLabelValues(name).Set(v)
}

func RecordCircuitBreakerTrip(name, reason string) {
	circuitBreakerTrips.WithLabelValues(name, reason).Inc()
}
