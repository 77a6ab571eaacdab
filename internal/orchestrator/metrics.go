package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/HendryAvila/smartflow/internal/workflow"
)

// Metrics records run, phase and merge outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	runs          *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	gates         *prometheus.CounterVec
	merges        *prometheus.CounterVec
}

// NewMetrics registers the engine metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// Labels: workflow, status (completed, failed, rejected)
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smartflow",
				Name:      "orchestrations_total",
				Help:      "Total number of orchestration runs by final status",
			},
			[]string{"workflow", "status"},
		),
		phaseDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "smartflow",
				Name:      "phase_duration_seconds",
				Help:      "Duration of orchestration phases in seconds",
				Buckets:   []float64{.005, .01, .05, .1, .5, 1, 2, 5, 10},
			},
			[]string{"role"},
		),
		gates: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smartflow",
				Name:      "quality_gate_total",
				Help:      "Total number of quality gate verdicts",
			},
			[]string{"role", "result"},
		),
		// Labels: outcome (clean, conflict, error)
		merges: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smartflow",
				Name:      "context_merges_total",
				Help:      "Total number of business context merges by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) run(workflowName, status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(workflowName, status).Inc()
}

func (m *Metrics) phase(role workflow.Role, gate workflow.GateResult, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(string(role)).Observe(d.Seconds())
	m.gates.WithLabelValues(string(role), string(gate)).Inc()
}

func (m *Metrics) merge(outcome string) {
	if m == nil {
		return
	}
	m.merges.WithLabelValues(outcome).Inc()
}
