// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trading engine.
type Metrics struct {
	// Scan metrics
	ScansTotal        *prometheus.CounterVec
	CandidatesScored  prometheus.Counter
	CandidatesBought  prometheus.Counter
	CandidatesDenied  *prometheus.CounterVec
	CandidatesSkipped prometheus.Counter
	ScanDuration      prometheus.Histogram

	// Position metrics
	OpenPositions prometheus.Gauge
	ExposureSOL   prometheus.Gauge
	ExitsTotal    *prometheus.CounterVec
	RealizedPnL   prometheus.Histogram

	// Memory metrics
	MemoryWrites *prometheus.CounterVec
	AvoidListed  prometheus.Counter

	// External call metrics
	ExternalCallLatency *prometheus.HistogramVec
	ExternalCallErrors  *prometheus.CounterVec

	// Health metrics
	LastScanRun prometheus.Gauge
	LastExitRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_trader"
	}

	return &Metrics{
		ScansTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "scans_total",
			Help:      "Total number of scan cycles by outcome",
		}, []string{"status"}),
		CandidatesScored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "candidates_scored_total",
			Help:      "Total number of candidates scored",
		}),
		CandidatesBought: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "candidates_bought_total",
			Help:      "Total number of candidates bought",
		}),
		CandidatesDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "candidates_denied_total",
			Help:      "Total number of gate denials by reason",
		}, []string{"reason"}),
		CandidatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "candidates_skipped_total",
			Help:      "Total number of candidates skipped below thresholds",
		}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "scan_duration_seconds",
			Help:      "Scan cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "open",
			Help:      "Current number of open positions",
		}),
		ExposureSOL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "exposure_sol",
			Help:      "Current total exposure across open positions, in SOL",
		}),
		ExitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "exits_total",
			Help:      "Total number of closed positions by exit reason",
		}, []string{"reason"}),
		RealizedPnL: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "realized_pnl_pct",
			Help:      "Realized PnL per closed trade, percent",
			Buckets:   []float64{-80, -50, -30, -20, -10, 0, 10, 20, 50, 100, 200},
		}),

		MemoryWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "writes_total",
			Help:      "Total number of memory entries written by kind",
		}, []string{"kind"}),
		AvoidListed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "avoid_listed_total",
			Help:      "Total number of tokens added to the avoid list",
		}),

		ExternalCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "call_duration_seconds",
			Help:      "External provider call latency by provider and call",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "call"}),
		ExternalCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "call_errors_total",
			Help:      "External provider call errors by provider and call",
		}, []string{"provider", "call"}),

		LastScanRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_scan_timestamp_seconds",
			Help:      "Unix timestamp of the last completed scan cycle",
		}),
		LastExitRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_exit_check_timestamp_seconds",
			Help:      "Unix timestamp of the last completed exit cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordScan records one scan cycle's outcome and duration.
func RecordScan(status string, seconds float64) {
	DefaultMetrics.ScansTotal.WithLabelValues(status).Inc()
	DefaultMetrics.ScanDuration.Observe(seconds)
}

// RecordCandidate records one scan candidate's outcome.
func RecordCandidate(action, denyReason string) {
	DefaultMetrics.CandidatesScored.Inc()
	switch action {
	case "BOUGHT":
		DefaultMetrics.CandidatesBought.Inc()
	case "BLOCKED":
		DefaultMetrics.CandidatesDenied.WithLabelValues(denyReason).Inc()
	case "SKIPPED":
		DefaultMetrics.CandidatesSkipped.Inc()
	}
}

// RecordExit records one closed position.
func RecordExit(reason string, pnlPct float64) {
	DefaultMetrics.ExitsTotal.WithLabelValues(reason).Inc()
	DefaultMetrics.RealizedPnL.Observe(pnlPct)
}

// UpdatePortfolio updates the open-position gauges.
func UpdatePortfolio(openPositions int, exposureSOL float64) {
	DefaultMetrics.OpenPositions.Set(float64(openPositions))
	DefaultMetrics.ExposureSOL.Set(exposureSOL)
}

// RecordMemoryWrite records one memory entry write.
func RecordMemoryWrite(kind string) {
	DefaultMetrics.MemoryWrites.WithLabelValues(kind).Inc()
	if kind == "AVOID" {
		DefaultMetrics.AvoidListed.Inc()
	}
}

// RecordExternalCall records an external provider call's latency.
func RecordExternalCall(provider, call string, seconds float64) {
	DefaultMetrics.ExternalCallLatency.WithLabelValues(provider, call).Observe(seconds)
}

// RecordExternalError records an external provider call failure.
func RecordExternalError(provider, call string) {
	DefaultMetrics.ExternalCallErrors.WithLabelValues(provider, call).Inc()
}

// MarkScanRun updates the last-scan health gauge.
func MarkScanRun(unixSeconds float64) {
	DefaultMetrics.LastScanRun.Set(unixSeconds)
}

// MarkExitRun updates the last-exit-check health gauge.
func MarkExitRun(unixSeconds float64) {
	DefaultMetrics.LastExitRun.Set(unixSeconds)
}
