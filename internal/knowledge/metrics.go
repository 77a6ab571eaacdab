package knowledge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records adapter call outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the adapter metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// Labels: source, outcome (success, failed, timeout)
		calls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smartflow",
				Name:      "adapter_calls_total",
				Help:      "Total number of knowledge adapter calls by outcome",
			},
			[]string{"source", "outcome"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "smartflow",
				Name:      "adapter_duration_seconds",
				Help:      "Duration of knowledge adapter calls in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"source"},
		),
	}
}

func (m *Metrics) observe(src Source, status Status, d time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(string(src), string(status)).Inc()
	m.duration.WithLabelValues(string(src)).Observe(d.Seconds())
}
