// Package metrics provides Prometheus metrics for a recur run.
//
// Every run owns a dedicated registry. When metrics.textfile is configured the
// registry is written once at the end of the run in the node_exporter textfile
// format, which suits a short-lived process that is never scraped.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "recur"

// Metrics holds the run collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	// BackendCalls counts backend calls.
	// Labels: provider, op (generate, grade), result (success, error)
	BackendCalls *prometheus.CounterVec

	// BackendRetries counts retries scheduled by the retry policy.
	// Labels: op
	BackendRetries *prometheus.CounterVec

	// BackendCallDuration tracks backend latency.
	// Labels: provider, op
	BackendCallDuration *prometheus.HistogramVec

	// RecordsScored counts graded records.
	// Labels: agent (base, alt)
	RecordsScored *prometheus.CounterVec

	// Scores tracks the distribution of scores.
	Scores prometheus.Histogram

	// RoundsTotal counts completed refinement rounds.
	RoundsTotal prometheus.Counter

	// BestScore is the current best score of the run.
	BestScore prometheus.Gauge

	// RunDuration tracks run wall time.
	// Labels: result (success, error)
	RunDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		BackendCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_calls_total",
				Help:      "Total number of backend calls",
			},
			[]string{"provider", "op", "result"},
		),
		BackendRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_retries_total",
				Help:      "Total number of retried backend calls",
			},
			[]string{"op"},
		),
		BackendCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_call_duration_seconds",
				Help:      "Duration of backend calls in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider", "op"},
		),
		RecordsScored: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_scored_total",
				Help:      "Total number of graded records",
			},
			[]string{"agent"},
		),
		Scores: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "record_score",
				Help:      "Distribution of record scores",
				Buckets:   prometheus.LinearBuckets(10, 10, 10),
			},
		),
		RoundsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rounds_total",
				Help:      "Total number of completed refinement rounds",
			},
		),
		BestScore: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "best_score",
				Help:      "Current best score of the run",
			},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"result"},
		),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordBackendCall records the outcome and latency of one backend call.
func (m *Metrics) RecordBackendCall(provider, op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.BackendCalls.WithLabelValues(provider, op, result(err)).Inc()
	m.BackendCallDuration.WithLabelValues(provider, op).Observe(d.Seconds())
}

// RecordRetry counts one scheduled retry.
func (m *Metrics) RecordRetry(op string) {
	if m == nil {
		return
	}
	m.BackendRetries.WithLabelValues(op).Inc()
}

// RecordScore records a graded record. agent is reduced to base or alt.
func (m *Metrics) RecordScore(agent string, score float64) {
	if m == nil {
		return
	}
	m.RecordsScored.WithLabelValues(agentKind(agent)).Inc()
	m.Scores.Observe(score)
}

// RecordRound counts a completed round and the best score after it.
func (m *Metrics) RecordRound(best float64) {
	if m == nil {
		return
	}
	m.RoundsTotal.Inc()
	m.BestScore.Set(best)
}

// SetBest records the current best score.
func (m *Metrics) SetBest(score float64) {
	if m == nil {
		return
	}
	m.BestScore.Set(score)
}

// RecordRun records the run duration.
func (m *Metrics) RecordRun(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.RunDuration.WithLabelValues(result(err)).Observe(d.Seconds())
}

// WriteTextfile writes the registry to path for the node_exporter textfile
// collector. The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func agentKind(agent string) string {
	if agent == "base" {
		return "base"
	}
	return "alt"
}
