// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Valuation metrics
	TradesPriced    prometheus.Counter
	PricingFailures *prometheus.CounterVec
	WorkersActive   prometheus.Gauge
	WorkerDuration  prometheus.Histogram

	// Cube metrics
	CubeCells *prometheus.GaugeVec
	CubeBytes *prometheus.GaugeVec

	// Analytics metrics
	NettingSetsAggregated prometheus.Counter
	ScenariosIndexed      prometheus.Counter
	ReportRows            *prometheus.CounterVec

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulPipeline prometheus.Gauge
	UptimeSeconds          prometheus.Counter
}

// NewMetrics creates a new Metrics instance registered with reg. A nil reg
// uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "exposure_cube_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Valuation metrics
		TradesPriced: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "trades_priced_total",
			Help:      "Total number of trades priced into a cube",
		}),
		PricingFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "pricing_failures_total",
			Help:      "Total number of trade pricing failures by failure policy",
		}, []string{"policy"}),
		WorkersActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "workers_active",
			Help:      "Number of valuation workers currently running",
		}),
		WorkerDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "worker_duration_seconds",
			Help:      "Wall time of a valuation worker in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),

		// Cube metrics
		CubeCells: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cube",
			Name:      "cells",
			Help:      "Number of addressable cells in the last built cube",
		}, []string{"layout", "precision"}),
		CubeBytes: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cube",
			Name:      "encoded_bytes",
			Help:      "Size of the last serialized cube in bytes",
		}, []string{"layout", "precision"}),

		// Analytics metrics
		NettingSetsAggregated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exposure",
			Name:      "netting_sets_aggregated_total",
			Help:      "Total number of netting sets aggregated",
		}),
		ScenariosIndexed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sensitivity",
			Name:      "scenarios_indexed_total",
			Help:      "Total number of sensitivity scenarios indexed",
		}),
		ReportRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporting",
			Name:      "rows_total",
			Help:      "Total number of report rows produced by report",
		}, []string{"report"}),

		// Pipeline metrics
		PipelineRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"phase", "status"}),
		PipelineDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulPipeline: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pipeline_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
		UptimeSeconds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordTradePriced increments the trades priced counter.
func RecordTradePriced() {
	DefaultMetrics.TradesPriced.Inc()
}

// RecordPricingFailure records a failed trade valuation.
func RecordPricingFailure(policy string) {
	DefaultMetrics.PricingFailures.WithLabelValues(policy).Inc()
}

// RecordWorkerStarted marks a valuation worker as running.
func RecordWorkerStarted() {
	DefaultMetrics.WorkersActive.Inc()
}

// RecordWorkerFinished marks a valuation worker as done and records its duration.
func RecordWorkerFinished(seconds float64) {
	DefaultMetrics.WorkersActive.Dec()
	DefaultMetrics.WorkerDuration.Observe(seconds)
}

// RecordCubeSize records the shape of a built cube.
func RecordCubeSize(layout, precision string, cells, encodedBytes int) {
	DefaultMetrics.CubeCells.WithLabelValues(layout, precision).Set(float64(cells))
	if encodedBytes > 0 {
		DefaultMetrics.CubeBytes.WithLabelValues(layout, precision).Set(float64(encodedBytes))
	}
}

// RecordNettingSets adds to the netting sets aggregated counter.
func RecordNettingSets(n int) {
	DefaultMetrics.NettingSetsAggregated.Add(float64(n))
}

// RecordScenariosIndexed adds to the scenarios indexed counter.
func RecordScenariosIndexed(n int) {
	DefaultMetrics.ScenariosIndexed.Add(float64(n))
}

// RecordReportRows adds to the report rows counter.
func RecordReportRows(report string, n int) {
	DefaultMetrics.ReportRows.WithLabelValues(report).Add(float64(n))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordPipelineRun records a pipeline run.
func RecordPipelineRun(phase, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordPipelineSuccess stamps the last successful pipeline run.
func RecordPipelineSuccess(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulPipeline.Set(float64(unixSeconds))
}
