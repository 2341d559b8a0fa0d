// Package metrics provides Prometheus metrics export for the learning loop.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exports learning metrics in Prometheus format. A nil *Exporter
// is valid and records nothing, so wiring stays optional.
type Exporter struct {
	registry *prometheus.Registry

	// Decision metrics
	decisions     *prometheus.CounterVec
	executedTotal *prometheus.CounterVec

	// Reward metrics
	rewardObserved *prometheus.HistogramVec
	epsilon        *prometheus.GaugeVec

	// Feedback metrics
	feedbackIntents *prometheus.CounterVec

	// Store metrics
	storeDegraded *prometheus.CounterVec
}

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry
}

// NewExporter creates a new Prometheus metrics exporter.
func NewExporter(cfg Config) *Exporter {
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridsense",
			Subsystem: "policy",
			Name:      "decisions_total",
			Help:      "Total policy decisions by source",
		},
		[]string{"domain_tag", "source"},
	)

	e.executedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridsense",
			Subsystem: "session",
			Name:      "executions_total",
			Help:      "Total grid command executions by outcome",
		},
		[]string{"domain_tag", "status"},
	)

	e.rewardObserved = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gridsense",
			Subsystem: "reward",
			Name:      "observed",
			Help:      "Distribution of combined rewards",
			Buckets:   []float64{-1, -0.6, -0.3, 0, 0.3, 0.5, 0.8, 1},
		},
		[]string{"domain_tag"},
	)

	e.epsilon = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gridsense",
			Subsystem: "policy",
			Name:      "epsilon",
			Help:      "Current exploration rate per session",
		},
		[]string{"session_id"},
	)

	e.feedbackIntents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridsense",
			Subsystem: "feedback",
			Name:      "intents_total",
			Help:      "Parsed feedback messages by intent",
		},
		[]string{"intent"},
	)

	e.storeDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridsense",
			Subsystem: "store",
			Name:      "degraded_total",
			Help:      "Store operations that degraded to empty results",
		},
		[]string{"op"},
	)

	registry.MustRegister(
		e.decisions,
		e.executedTotal,
		e.rewardObserved,
		e.epsilon,
		e.feedbackIntents,
		e.storeDegraded,
	)

	return e
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// RecordDecision counts one policy decision.
func (e *Exporter) RecordDecision(domainTag, source string) {
	if e == nil {
		return
	}
	e.decisions.WithLabelValues(domainTag, source).Inc()
}

// RecordExecution counts one grid execution attempt.
func (e *Exporter) RecordExecution(domainTag string, executed bool) {
	if e == nil {
		return
	}
	status := "ok"
	if !executed {
		status = "rejected"
	}
	e.executedTotal.WithLabelValues(domainTag, status).Inc()
}

// RecordReward observes one combined reward.
func (e *Exporter) RecordReward(domainTag string, reward float64) {
	if e == nil {
		return
	}
	e.rewardObserved.WithLabelValues(domainTag).Observe(reward)
}

// RecordEpsilon tracks a session's exploration rate.
func (e *Exporter) RecordEpsilon(sessionID string, epsilon float64) {
	if e == nil {
		return
	}
	e.epsilon.WithLabelValues(sessionID).Set(epsilon)
}

// RecordFeedbackIntent counts one parsed feedback message.
func (e *Exporter) RecordFeedbackIntent(intent string) {
	if e == nil {
		return
	}
	e.feedbackIntents.WithLabelValues(intent).Inc()
}

// RecordStoreDegraded counts one degraded store operation.
func (e *Exporter) RecordStoreDegraded(op string) {
	if e == nil {
		return
	}
	e.storeDegraded.WithLabelValues(op).Inc()
}
