// Package metrics exposes Prometheus counters for the archival engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors. All increment helpers
// are nil-safe so services can run without metrics wired (tests, tools).
type Metrics struct {
	TransitionsTotal  *prometheus.CounterVec
	RejectionsTotal   *prometheus.CounterVec
	SweepRuns         prometheus.Counter
	SweepTransitions  prometheus.Counter
	VersionsAppended  prometheus.Counter
	IntegrityFailures prometheus.Counter
}

// New creates and registers all engine metrics.
func New() *Metrics {
	return &Metrics{
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "archive_transitions_total",
			Help: "Committed status transitions by target status.",
		}, []string{"to_status"}),
		RejectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "archive_transition_rejections_total",
			Help: "Rejected transition requests by error code.",
		}, []string{"code"}),
		SweepRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "archive_sweep_runs_total",
			Help: "Retention sweep executions.",
		}),
		SweepTransitions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "archive_sweep_transitions_total",
			Help: "Automatic transitions applied by the retention sweep.",
		}),
		VersionsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "archive_versions_appended_total",
			Help: "Versions appended through the ledger.",
		}),
		IntegrityFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "archive_integrity_failures_total",
			Help: "Integrity verifications whose hash did not match.",
		}),
	}
}

func (m *Metrics) IncTransition(toStatus string) {
	if m != nil {
		m.TransitionsTotal.WithLabelValues(toStatus).Inc()
	}
}

func (m *Metrics) IncRejection(code string) {
	if m != nil {
		m.RejectionsTotal.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) IncSweepRun() {
	if m != nil {
		m.SweepRuns.Inc()
	}
}

func (m *Metrics) IncSweepTransition() {
	if m != nil {
		m.SweepTransitions.Inc()
	}
}

func (m *Metrics) IncVersionAppended() {
	if m != nil {
		m.VersionsAppended.Inc()
	}
}

func (m *Metrics) IncIntegrityFailure() {
	if m != nil {
		m.IntegrityFailures.Inc()
	}
}
