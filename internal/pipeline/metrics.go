package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the extraction pipeline.
type Metrics struct {
	JobsTotal       *prometheus.CounterVec
	ExtractDuration prometheus.Histogram
	RecordsTotal    *prometheus.CounterVec
	DroppedLeaves   prometheus.Counter
	StoreRetries    prometheus.Counter
	QueueDepth      prometheus.Gauge
}

// NewMetrics registers all pipeline metrics with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		JobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qcsr_jobs_total",
				Help: "Report jobs finished, by terminal status",
			},
			[]string{"status"},
		),
		ExtractDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "qcsr_extract_duration_seconds",
				Help:    "Time spent flattening and classifying one report",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		RecordsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qcsr_records_total",
				Help: "Classified records, by result bucket",
			},
			[]string{"bucket"},
		),
		DroppedLeaves: f.NewCounter(
			prometheus.CounterOpts{
				Name: "qcsr_dropped_leaves_total",
				Help: "Leaves that matched no result bucket",
			},
		),
		StoreRetries: f.NewCounter(
			prometheus.CounterOpts{
				Name: "qcsr_store_retries_total",
				Help: "Result store writes retried after a transient error",
			},
		),
		QueueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "qcsr_queue_depth",
				Help: "Jobs waiting for a worker",
			},
		),
	}
}
