// Package metrics provides Prometheus instrumentation for the drowsiness monitor.
//
// Metrics exposed:
//   - drowsiness_evaluations_total: Counter of completed evaluations
//   - drowsiness_alerts_total: Counter of confirmed-sleep alerts by source (poll, background)
//   - drowsiness_missing_data_total: Counter of evaluations with no samples of either kind
//   - drowsiness_fetch_errors_total: Counter of failed sample fetches by kind
//   - drowsiness_probability: Gauge of the last raw probability
//   - drowsiness_inactivity_seconds: Gauge of the last observed inactivity
//   - drowsiness_evaluate_seconds: Histogram of evaluation duration
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the monitor.
type Metrics struct {
	EvaluationsTotal  prometheus.Counter
	AlertsTotal       *prometheus.CounterVec
	MissingDataTotal  prometheus.Counter
	FetchErrorsTotal  *prometheus.CounterVec
	Probability       prometheus.Gauge
	InactivitySeconds prometheus.Gauge
	EvaluateSeconds   prometheus.Histogram
}

// New creates and registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EvaluationsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "drowsiness_evaluations_total",
			Help: "Number of completed drowsiness evaluations",
		}),
		AlertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "drowsiness_alerts_total",
			Help: "Number of confirmed-sleep alerts",
		}, []string{"source"}),
		MissingDataTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "drowsiness_missing_data_total",
			Help: "Evaluations where neither heart-rate nor energy samples were available",
		}),
		FetchErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "drowsiness_fetch_errors_total",
			Help: "Failed sample fetches from the health source",
		}, []string{"kind"}),
		Probability: f.NewGauge(prometheus.GaugeOpts{
			Name: "drowsiness_probability",
			Help: "Raw sleep probability from the last evaluation",
		}),
		InactivitySeconds: f.NewGauge(prometheus.GaugeOpts{
			Name: "drowsiness_inactivity_seconds",
			Help: "Time since the last user interaction at the last evaluation",
		}),
		EvaluateSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "drowsiness_evaluate_seconds",
			Help:    "Time spent in one evaluation, including sample fetches",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveEvaluation records one completed evaluation. A nil probability
// (no samples) leaves the probability gauge at its previous value.
func (m *Metrics) ObserveEvaluation(took time.Duration, probability *float64, inactivity time.Duration, missing bool) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.Inc()
	m.EvaluateSeconds.Observe(took.Seconds())
	if probability != nil {
		m.Probability.Set(*probability)
	}
	m.InactivitySeconds.Set(inactivity.Seconds())
	if missing {
		m.MissingDataTotal.Inc()
	}
}

// FetchError records a failed fetch for kind.
func (m *Metrics) FetchError(kind string) {
	if m == nil {
		return
	}
	m.FetchErrorsTotal.WithLabelValues(kind).Inc()
}

// Alert records a dispatched alert from source.
func (m *Metrics) Alert(source string) {
	if m == nil {
		return
	}
	m.AlertsTotal.WithLabelValues(source).Inc()
}
