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
	// Ledger RPC metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Transaction lifecycle metrics
	TransactionsTotal *prometheus.CounterVec
	ConfirmationPolls prometheus.Histogram
	ConfirmationWait  prometheus.Histogram
	SwapQuotesTotal   *prometheus.CounterVec
	SwapBreakerState  prometheus.Gauge

	// Throughput metrics
	ThroughputRate      prometheus.Gauge
	BlocksScanned       prometheus.Histogram
	ThroughputEstimates *prometheus.CounterVec

	// Wallet ledger metrics
	BalanceUpdates *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_wallet_engine"
	}

	return &Metrics{
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Solana RPC calls by method",
		}, []string{"method"}),

		TransactionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "transactions_total",
			Help:      "Total number of transactions by kind and terminal state",
		}, []string{"kind", "state"}),
		ConfirmationPolls: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "confirmation_polls",
			Help:      "Number of status polls per confirmation wait",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50, 100},
		}),
		ConfirmationWait: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "confirmation_wait_seconds",
			Help:      "Time spent waiting for confirmation in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		SwapQuotesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "quotes_total",
			Help:      "Total number of swap quote requests by status",
		}, []string{"status"}),
		SwapBreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "breaker_state",
			Help:      "Quote service circuit breaker state (0 closed, 1 half-open, 2 open)",
		}),

		ThroughputRate: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "throughput",
			Name:      "user_tps",
			Help:      "Last estimated non-vote transactions per second",
		}),
		BlocksScanned: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "throughput",
			Name:      "blocks_scanned",
			Help:      "Number of blocks walked per estimate",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		ThroughputEstimates: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "throughput",
			Name:      "estimates_total",
			Help:      "Total number of throughput estimates by status",
		}, []string{"status"}),

		BalanceUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "balance_updates_total",
			Help:      "Total number of internal balance updates by operation and outcome",
		}, []string{"operation", "outcome"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordRPCError increments the RPC error counter for a method.
func RecordRPCError(method string) {
	DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
}

// RecordTransaction records a transaction reaching a terminal state.
func RecordTransaction(kind, state string) {
	DefaultMetrics.TransactionsTotal.WithLabelValues(kind, state).Inc()
}

// RecordConfirmation records the cost of one confirmation wait.
func RecordConfirmation(polls int, seconds float64) {
	DefaultMetrics.ConfirmationPolls.Observe(float64(polls))
	DefaultMetrics.ConfirmationWait.Observe(seconds)
}

// RecordSwapQuote records a quote request outcome.
func RecordSwapQuote(status string) {
	DefaultMetrics.SwapQuotesTotal.WithLabelValues(status).Inc()
}

// SetSwapBreakerState records the quote breaker state.
func SetSwapBreakerState(state int) {
	DefaultMetrics.SwapBreakerState.Set(float64(state))
}

// RecordThroughput records a completed throughput estimate.
func RecordThroughput(rate float64, blocks int) {
	DefaultMetrics.ThroughputRate.Set(rate)
	DefaultMetrics.BlocksScanned.Observe(float64(blocks))
	DefaultMetrics.ThroughputEstimates.WithLabelValues("ok").Inc()
}

// RecordThroughputError records a failed throughput estimate.
func RecordThroughputError() {
	DefaultMetrics.ThroughputEstimates.WithLabelValues("error").Inc()
}

// RecordBalanceUpdate records an internal balance change attempt.
func RecordBalanceUpdate(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	DefaultMetrics.BalanceUpdates.WithLabelValues(operation, outcome).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHTTPRequest records an API request.
func RecordHTTPRequest(route, code string) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, code).Inc()
}
