// Package metrics provides a Prometheus backed auth.MetricsRecorder.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	auth "github.com/goliatone/go-jwtauth"
)

const namespace = "jwtauth"

// Recorder counts token operations by outcome and tracks their latency.
type Recorder struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

var _ auth.MetricsRecorder = (*Recorder)(nil)

// NewRecorder creates the collectors and registers them with reg. A nil
// registerer skips registration.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Count of token operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of token operations.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}

	if reg == nil {
		return r, nil
	}

	for _, c := range []prometheus.Collector{r.operations, r.latency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Observe satisfies auth.MetricsRecorder.
func (r *Recorder) Observe(operation, outcome string, elapsed time.Duration) {
	r.operations.With(prometheus.Labels{"operation": operation, "outcome": outcome}).Inc()
	r.latency.With(prometheus.Labels{"operation": operation}).Observe(elapsed.Seconds())
}

// Operations exposes the counter, mostly for tests.
func (r *Recorder) Operations() *prometheus.CounterVec {
	return r.operations
}
