package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing, so services and tests can skip metrics entirely.
type Metrics struct {
	// Registry owns these metrics; the /metrics endpoint serves it.
	Registry *prometheus.Registry

	ruleWrites          *prometheus.CounterVec
	periodsMaterialized *prometheus.CounterVec
	penaltiesApplied    *prometheus.CounterVec
	contributions       *prometheus.CounterVec
	integrityWarnings   prometheus.Counter
	reconcileDuration   prometheus.Histogram
	reconcileRuns       *prometheus.CounterVec
}

// NewMetrics creates a dedicated registry so repeated construction in tests
// never hits duplicate-collector panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		ruleWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stokvel_rule_writes_total",
				Help: "Rule create/update/activation attempts by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		periodsMaterialized: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stokvel_periods_materialized_total",
				Help: "Period candidates processed by outcome (created, existing, no_rule).",
			},
			[]string{"outcome"},
		),
		penaltiesApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stokvel_penalties_applied_total",
				Help: "Penalties persisted by category.",
			},
			[]string{"category"},
		),
		contributions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stokvel_contributions_total",
				Help: "Contribution state changes by action.",
			},
			[]string{"action"},
		),
		integrityWarnings: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "stokvel_rule_integrity_warnings_total",
				Help: "Resolutions that found more than one rule in force.",
			},
		),
		reconcileDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stokvel_reconciliation_duration_seconds",
				Help:    "Duration of reconciliation runs.",
				Buckets: prometheus.DefBuckets,
			},
		),
		reconcileRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stokvel_reconciliation_runs_total",
				Help: "Reconciliation runs by status.",
			},
			[]string{"status"},
		),
	}
}

func (m *Metrics) IncrRuleWrite(kind, outcome string) {
	if m == nil {
		return
	}
	m.ruleWrites.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncrPeriod(outcome string) {
	if m == nil {
		return
	}
	m.periodsMaterialized.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrPenalty(category string) {
	if m == nil {
		return
	}
	m.penaltiesApplied.WithLabelValues(category).Inc()
}

func (m *Metrics) IncrContribution(action string) {
	if m == nil {
		return
	}
	m.contributions.WithLabelValues(action).Inc()
}

func (m *Metrics) AddIntegrityWarnings(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.integrityWarnings.Add(float64(n))
}

// ObserveReconcile records one run's duration and status.
func (m *Metrics) ObserveReconcile(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.reconcileDuration.Observe(d.Seconds())
	m.reconcileRuns.WithLabelValues(status).Inc()
}
