package observability

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var enabled atomic.Bool

func init() {
	enabled.Store(true)
}

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream", "result"},
	)

	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coverage_lookups_total",
			Help: "Coverage lookups by terminal outcome.",
		},
		[]string{"outcome"},
	)

	recordsScanned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coverage_records_scanned",
			Help:    "Records returned by the store per lookup, before and after proximity filtering.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"stage"},
	)

	partitionQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coverage_partition_queries_total",
			Help: "Store range queries by partition.",
		},
		[]string{"partition"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Cache results by outcome.",
		},
		[]string{"cache", "outcome"},
	)

	cacheOpTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Redis operations by op and result.",
		},
		[]string{"op", "result"},
	)

	redisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	invalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidations_total",
			Help: "Applied cache invalidation events.",
		},
		[]string{"op", "result"},
	)

	invalidatedKeys = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invalidated_keys_total",
			Help: "Cache keys deleted by invalidation events.",
		},
	)

	kafkaConsumerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_errors_total",
			Help: "Kafka consumer errors by kind.",
		},
		[]string{"kind"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds,
		lookupsTotal, recordsScanned, partitionQueries,
		cacheResults, cacheOpTotal, redisOpDuration,
		invalidationsTotal, invalidatedKeys, kafkaConsumerErrors,
	}
}

// Init also exposes the service metrics on reg (typically a metrics.Provider
// registry, which carries its own app_build_info). With on=false every
// Observe/Inc call becomes a no-op.
func Init(reg prometheus.Registerer, on bool) {
	enabled.Store(on)
	if reg == nil || !on {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstream(upstream string, err error, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	upstreamLatencySeconds.WithLabelValues(upstream, result(err)).Observe(durationSeconds)
}

func IncLookup(outcome string) {
	if !enabled.Load() {
		return
	}
	lookupsTotal.WithLabelValues(outcome).Inc()
}

func ObserveRecords(stage string, n int) {
	if !enabled.Load() {
		return
	}
	recordsScanned.WithLabelValues(stage).Observe(float64(n))
}

func IncPartitionQuery(partition string) {
	if !enabled.Load() {
		return
	}
	partitionQueries.WithLabelValues(partition).Inc()
}

func IncCacheHit(cache string) {
	if !enabled.Load() {
		return
	}
	cacheResults.WithLabelValues(cache, "hit").Inc()
}

func IncCacheMiss(cache string) {
	if !enabled.Load() {
		return
	}
	cacheResults.WithLabelValues(cache, "miss").Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	cacheOpTotal.WithLabelValues(op, result(err)).Inc()
	redisOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

func ObserveInvalidation(op string, keys int, err error) {
	if !enabled.Load() {
		return
	}
	invalidationsTotal.WithLabelValues(op, result(err)).Inc()
	if err == nil && keys > 0 {
		invalidatedKeys.Add(float64(keys))
	}
}

func IncKafkaConsumerError(kind string) {
	if !enabled.Load() {
		return
	}
	kafkaConsumerErrors.WithLabelValues(kind).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
