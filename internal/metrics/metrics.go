// Package metrics exposes console counters to Prometheus. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the console's collectors on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	guard       *prometheus.CounterVec
	bridge      *prometheus.CounterVec
	ledger      *prometheus.CounterVec
	submissions *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.guard = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tickeasy_guard_decisions_total",
		Help: "Route guard decisions by resulting state.",
	}, []string{"state"})
	m.bridge = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tickeasy_bridge_adoptions_total",
		Help: "Cross-domain handoff adoption attempts by result.",
	}, []string{"result"})
	m.ledger = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tickeasy_ledger_fetches_total",
		Help: "Review ledger fetches by matched response shape.",
	}, []string{"shape"})
	m.submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tickeasy_review_submissions_total",
		Help: "Manual review submissions by decision and outcome.",
	}, []string{"decision", "outcome"})

	m.registry.MustRegister(m.guard, m.bridge, m.ledger, m.submissions)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) GuardDecision(state string) {
	if m != nil {
		m.guard.WithLabelValues(state).Inc()
	}
}

func (m *Metrics) BridgeAdoption(result string) {
	if m != nil {
		m.bridge.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) LedgerFetch(shape string) {
	if m != nil {
		m.ledger.WithLabelValues(shape).Inc()
	}
}

func (m *Metrics) ReviewSubmission(decision, outcome string) {
	if m != nil {
		m.submissions.WithLabelValues(decision, outcome).Inc()
	}
}
