package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksTotal    *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	rollupBuckets *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinpulse_ticks_total",
				Help: "Total number of price ticks persisted",
			},
			[]string{"coin"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coinpulse_last_price",
				Help: "Last simulated price for a coin",
			},
			[]string{"coin"},
		),
		rollupBuckets: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinpulse_rollup_buckets_total",
				Help: "Total number of OHLC buckets inserted per interval",
			},
			[]string{"interval"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordTick records a persisted price tick for a coin.
func (r *Recorder) RecordTick(coin string, price float64) {
	r.ticksTotal.WithLabelValues(coin).Inc()
	r.lastPrice.WithLabelValues(coin).Set(price)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordRollup records inserted OHLC buckets for an interval.
func (r *Recorder) RecordRollup(interval string, buckets int) {
	r.rollupBuckets.WithLabelValues(interval).Add(float64(buckets))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
