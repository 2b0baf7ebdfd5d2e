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
	// Scan metrics
	CyclesTotal         prometheus.Counter
	CycleErrors         prometheus.Counter
	CycleDuration       prometheus.Histogram
	CandidatesEvaluated prometheus.Counter
	CandidatesRejected  *prometheus.CounterVec
	FeedRateLimited     prometheus.Counter

	// Trade metrics
	BuysTotal     prometheus.Counter
	SellsTotal    *prometheus.CounterVec
	TradeFailures *prometheus.CounterVec
	OpenPositions prometheus.Gauge

	// Chain metrics
	RPCCallLatency  *prometheus.HistogramVec
	RPCCallErrors   *prometheus.CounterVec
	LatestBlockSeen prometheus.Gauge

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "bsc_token_sniper"
	}

	return &Metrics{
		// Scan metrics
		CyclesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "cycles_total",
			Help:      "Total number of scan cycles started",
		}),
		CycleErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "cycle_errors_total",
			Help:      "Total number of scan cycles aborted by an error or panic",
		}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "cycle_duration_seconds",
			Help:      "Scan cycle duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		CandidatesEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "candidates_evaluated_total",
			Help:      "Total number of pair snapshots run through the filter",
		}),
		CandidatesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "candidates_rejected_total",
			Help:      "Total number of rejected candidates by reason",
		}, []string{"reason"}),
		FeedRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "rate_limited_total",
			Help:      "Total number of market feed requests rejected with 429",
		}),

		// Trade metrics
		BuysTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "buys_total",
			Help:      "Total number of confirmed buys",
		}),
		SellsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "sells_total",
			Help:      "Total number of confirmed sells by exit reason",
		}, []string{"exit_reason"}),
		TradeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "failures_total",
			Help:      "Total number of failed trade attempts by side",
		}, []string{"side"}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "open_positions",
			Help:      "Current number of open positions",
		}),

		// Chain metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_latency_seconds",
			Help:      "BSC RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed BSC RPC calls by method",
		}, []string{"method"}),
		LatestBlockSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "latest_block_seen",
			Help:      "Latest BSC block number observed",
		}),

		// Health metrics
		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of the last scan cycle that finished cleanly",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRejection increments the rejected-candidates counter for a reason.
func RecordRejection(reason string) {
	DefaultMetrics.CandidatesRejected.WithLabelValues(reason).Inc()
}

// RecordBuy increments the confirmed-buys counter.
func RecordBuy() {
	DefaultMetrics.BuysTotal.Inc()
}

// RecordSell increments the confirmed-sells counter for an exit reason.
func RecordSell(exitReason string) {
	DefaultMetrics.SellsTotal.WithLabelValues(exitReason).Inc()
}

// RecordTradeFailure increments the failed-trades counter for a side.
func RecordTradeFailure(side string) {
	DefaultMetrics.TradeFailures.WithLabelValues(side).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// UpdateLatestBlock updates the latest block gauge.
func UpdateLatestBlock(block uint64) {
	DefaultMetrics.LatestBlockSeen.Set(float64(block))
}
