// Package metrics exposes Prometheus instrumentation for the integrity
// engine. A nil *Metrics is a no-op, so components never need guard clauses.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's counters.
type Metrics struct {
	verifications *prometheus.CounterVec
	mismatches    prometheus.Counter
	syncOutcomes  *prometheus.CounterVec
	alertsRaised  *prometheus.CounterVec
}

// New registers the engine metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "custodix",
			Name:      "verifications_total",
			Help:      "Evidence verifications by outcome and answering source.",
		}, []string{"outcome", "source"}),
		mismatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "custodix",
			Name:      "fingerprint_mismatches_total",
			Help:      "Fingerprint mismatches detected during verification.",
		}),
		syncOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "custodix",
			Name:      "sync_outcomes_total",
			Help:      "Reconciliation sync attempts by outcome.",
		}, []string{"outcome"}),
		alertsRaised: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "custodix",
			Name:      "alerts_raised_total",
			Help:      "Security alerts raised by type.",
		}, []string{"type"}),
	}
}

// ObserveVerification records one verification result.
func (m *Metrics) ObserveVerification(outcome, source string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcome, source).Inc()
}

// ObserveMismatch records one tamper detection.
func (m *Metrics) ObserveMismatch() {
	if m == nil {
		return
	}
	m.mismatches.Inc()
}

// ObserveSyncOutcome records one sync attempt.
func (m *Metrics) ObserveSyncOutcome(outcome string) {
	if m == nil {
		return
	}
	m.syncOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveAlertRaised records one raised alert.
func (m *Metrics) ObserveAlertRaised(alertType string) {
	if m == nil {
		return
	}
	m.alertsRaised.WithLabelValues(alertType).Inc()
}
