package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	eventsTotal   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	wallsTotal    *prometheus.CounterVec
	layeringScore *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a Prometheus recorder registered on the default registry.
func New() *Recorder {
	return &Recorder{
		eventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whale_events_total",
				Help: "Total events published per bus topic",
			},
			[]string{"topic"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whale_errors_total",
				Help: "Total errors by kind (fetch, normalize, memory_write, subscriber_panic, ...)",
			},
			[]string{"type"},
		),
		wallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whale_walls_detected_total",
				Help: "Order-book walls detected per symbol and side",
			},
			[]string{"symbol", "side"},
		),
		layeringScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "whale_layering_score",
				Help: "Last layering score per symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whale_operation_duration_seconds",
				Help:    "Duration of pipeline operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordEvent records one event published to a bus topic.
func (r *Recorder) RecordEvent(topic string) {
	r.eventsTotal.WithLabelValues(topic).Inc()
}

// RecordError records an error occurrence by kind.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordWall records one detected wall.
func (r *Recorder) RecordWall(symbol, side string) {
	r.wallsTotal.WithLabelValues(symbol, side).Inc()
}

// RecordLayering records the latest layering score for a symbol.
func (r *Recorder) RecordLayering(symbol string, score float64) {
	r.layeringScore.WithLabelValues(symbol).Set(score)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
