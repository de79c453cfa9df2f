package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Indexer counters, gauges and histograms. Block-level series are
// partitioned by chain ("evm" or "substrate").

var (
	// Block processor
	ProcessorBlocksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "processor",
		Name:      "blocks_processed_total",
		Help:      "Total blocks processed successfully",
	}, []string{"chain"})

	ProcessorBlockErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "processor",
		Name:      "block_errors_total",
		Help:      "Total blocks that failed after exhausting retries",
	}, []string{"chain"})

	ProcessorBlockRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "processor",
		Name:      "block_retries_total",
		Help:      "Total per-block retry attempts",
	}, []string{"chain"})

	ProcessorBatchRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "processor",
		Name:      "batch_retries_total",
		Help:      "Total batch-level retry attempts",
	}, []string{"chain"})

	ProcessorBatchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indexer",
		Subsystem: "processor",
		Name:      "batch_duration_seconds",
		Help:      "Batch processing duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"chain"})

	ProcessorLatestBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "processor",
		Name:      "latest_indexed_block",
		Help:      "Highest block number whose batch completed",
	}, []string{"chain"})

	ProcessorChainHead = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "processor",
		Name:      "chain_head_block",
		Help:      "Latest head block observed on the node",
	}, []string{"chain"})

	ProcessorProgressPercent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "processor",
		Name:      "progress_percent",
		Help:      "Percentage of the configured range processed",
	}, []string{"chain"})

	// Extrinsic decoder
	ExtrinsicBoundaryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "extrinsic",
		Name:      "call_boundary_total",
		Help:      "Signed extrinsic call boundaries resolved, by strategy",
	}, []string{"strategy"})

	ExtrinsicDecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "extrinsic",
		Name:      "decode_errors_total",
		Help:      "Extrinsics that failed to decode, by field",
	}, []string{"field"})

	// Contract classifier
	ClassifierResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "classifier",
		Name:      "results_total",
		Help:      "Contract classifications, by detected type",
	}, []string{"type", "method"})

	ClassifierCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "classifier",
		Name:      "cache_hits_total",
		Help:      "Classification cache hits",
	})

	ClassifierCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "classifier",
		Name:      "cache_misses_total",
		Help:      "Classification cache misses",
	})

	ClassifierProbeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "classifier",
		Name:      "probe_errors_total",
		Help:      "Failed contract calls made while classifying",
	}, []string{"probe"})

	// RPC
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Total RPC calls, by method and status",
	}, []string{"chain", "method", "status"})

	RPCCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indexer",
		Subsystem: "rpc",
		Name:      "call_duration_seconds",
		Help:      "RPC call duration",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"chain", "method"})

	RPCRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "rpc",
		Name:      "rate_limit_waits_total",
		Help:      "Total times RPC calls waited for rate limiter",
	}, []string{"chain"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "rpc",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"chain"})

	// Database pool
	DBPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "postgres",
		Name:      "db_pool_open",
		Help:      "Current number of open PostgreSQL connections in the pool",
	})

	DBPoolInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "postgres",
		Name:      "db_pool_in_use",
		Help:      "Current number of in-use PostgreSQL connections in the pool",
	})

	DBPoolIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "postgres",
		Name:      "db_pool_idle",
		Help:      "Current number of idle PostgreSQL connections in the pool",
	})

	DBPoolWaitCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "postgres",
		Name:      "db_pool_wait_count",
		Help:      "Cumulative count of waits for PostgreSQL connections from pool",
	})

	DBPoolWaitDurationSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "postgres",
		Name:      "db_pool_wait_duration_seconds",
		Help:      "Latest PostgreSQL pool wait duration in seconds",
	})

	StoreSaveErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "store",
		Name:      "save_errors_total",
		Help:      "Records that failed to save, by chain and record kind",
	}, []string{"chain", "record"})

	// Block notifications
	StreamPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "stream",
		Name:      "published_total",
		Help:      "Block notifications published to Redis streams",
	}, []string{"stream"})

	StreamPublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "stream",
		Name:      "publish_errors_total",
		Help:      "Block notifications that failed to publish",
	}, []string{"stream"})

	// Pipeline health
	PipelineHealthStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "pipeline",
		Name:      "health_status",
		Help:      "Pipeline health status (0=UNKNOWN, 1=HEALTHY, 2=UNHEALTHY, 3=INACTIVE)",
	}, []string{"chain", "network"})

	PipelineConsecutiveFailures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "pipeline",
		Name:      "consecutive_failures",
		Help:      "Number of consecutive pipeline failures",
	}, []string{"chain", "network"})

	// Alerts
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Total alerts sent",
	}, []string{"channel", "alert_type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Total alerts skipped due to cooldown",
	}, []string{"channel", "alert_type"})
)
