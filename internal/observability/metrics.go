// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cycle metrics
	CyclesTotal       *prometheus.CounterVec
	CycleDuration     *prometheus.HistogramVec
	LamportsClaimed   prometheus.Counter
	LamportsSplit     prometheus.Counter
	LamportsBought    prometheus.Counter
	LamportsDeposited prometheus.Counter
	SharesBurned      prometheus.Counter
	OperationsTotal   *prometheus.CounterVec
	StepFailures      *prometheus.CounterVec

	// Batch metrics
	BatchRunsTotal *prometheus.CounterVec
	BatchDuration  prometheus.Histogram
	TokensSkipped  *prometheus.CounterVec

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulBatch prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "liquidify"
	}

	return &Metrics{
		// Cycle metrics
		CyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "Total number of cycles by phase and status",
		}, []string{"phase", "status"}),
		CycleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Cycle duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"phase"}),
		LamportsClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "fees_claimed_lamports_total",
			Help:      "Creator fees attributed to claims, in lamports",
		}),
		LamportsSplit: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "fee_split_lamports_total",
			Help:      "Lamports sent to fee split recipients",
		}),
		LamportsBought: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "buyback_lamports_total",
			Help:      "Lamports spent on buybacks",
		}),
		LamportsDeposited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "liquidity_lamports_total",
			Help:      "Lamports deposited as liquidity",
		}),
		SharesBurned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "pool_shares_burned_total",
			Help:      "Pool-share tokens burned, in raw units",
		}),
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "operations_total",
			Help:      "Confirmed on-chain operations by kind",
		}, []string{"kind"}),
		StepFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "step_failures_total",
			Help:      "Non-fatal step failures by step and reason",
		}, []string{"step", "reason"}),

		// Batch metrics
		BatchRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "runs_total",
			Help:      "Total number of batch runs by status",
		}, []string{"status"}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Batch duration in seconds",
			Buckets:   []float64{1, 10, 30, 60, 300, 600, 1800},
		}),
		TokensSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "tokens_skipped_total",
			Help:      "Tokens skipped by the batch runner by reason",
		}, []string{"reason"}),

		// Latency metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulBatch: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_batch_timestamp",
			Help:      "Unix timestamp of last successful batch",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// CycleSample is the metric view of one finished cycle.
type CycleSample struct {
	Phase        string
	Status       string
	Duration     time.Duration
	FeesClaimed  uint64
	FeeSplitSent uint64
	BuybackSpent uint64
	Deposited    uint64
	SharesBurned uint64
	Operations   []string // operation kinds in log order
}

// RecordCycle records a finished cycle.
func RecordCycle(s CycleSample) {
	m := DefaultMetrics
	m.CyclesTotal.WithLabelValues(s.Phase, s.Status).Inc()
	m.CycleDuration.WithLabelValues(s.Phase).Observe(s.Duration.Seconds())
	m.LamportsClaimed.Add(float64(s.FeesClaimed))
	m.LamportsSplit.Add(float64(s.FeeSplitSent))
	m.LamportsBought.Add(float64(s.BuybackSpent))
	m.LamportsDeposited.Add(float64(s.Deposited))
	m.SharesBurned.Add(float64(s.SharesBurned))
	for _, kind := range s.Operations {
		m.OperationsTotal.WithLabelValues(kind).Inc()
	}
}

// RecordStepFailure records a non-fatal step failure.
func RecordStepFailure(step, reason string) {
	DefaultMetrics.StepFailures.WithLabelValues(step, reason).Inc()
}

// RecordTokenSkipped records a token the batch runner did not process.
func RecordTokenSkipped(reason string) {
	DefaultMetrics.TokensSkipped.WithLabelValues(reason).Inc()
}

// RecordBatch records a batch run.
func RecordBatch(status string, durationSeconds float64) {
	DefaultMetrics.BatchRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.BatchDuration.Observe(durationSeconds)
	if status == "success" {
		DefaultMetrics.LastSuccessfulBatch.SetToCurrentTime()
	}
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// QueryOperation returns the lower-cased leading keyword of a SQL statement
// ("select", "insert", ...) for use as the operation label.
func QueryOperation(sql string) string {
	sql = strings.TrimSpace(sql)
	end := strings.IndexFunc(sql, unicode.IsSpace)
	if end < 0 {
		end = len(sql)
	}
	switch op := strings.ToLower(sql[:end]); op {
	case "select", "insert", "update", "delete", "create", "alter", "with":
		return op
	default:
		return "other"
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
