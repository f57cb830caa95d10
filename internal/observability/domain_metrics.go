package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	analyzeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlsage_analyze_requests_total",
			Help: "Total number of analyze requests by outcome.",
		},
		[]string{"outcome"},
	)
	generationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlsage_generation_requests_total",
			Help: "Total number of generation-service calls by kind.",
		},
		[]string{"kind"},
	)
	generationLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlsage_generation_latency_seconds",
			Help:    "Generation-service round-trip latency by kind.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"kind"},
	)
	sanitizerRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlsage_sanitizer_rejections_total",
			Help: "Total number of statements rejected by the restricted-namespace check.",
		},
	)
	warehouseQuerySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlsage_warehouse_query_duration_seconds",
			Help:    "Warehouse statement execution latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
		},
	)
	translationCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlsage_translation_cache_total",
			Help: "Translation cache lookups by result.",
		},
		[]string{"result"},
	)
	schemaCacheDatabases = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlsage_schema_cache_databases",
			Help: "Number of databases in the loaded schema cache.",
		},
	)
	schemaRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlsage_schema_refresh_total",
			Help: "Total number of schema refresh invocations by outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		analyzeRequestsTotal,
		generationRequestsTotal,
		generationLatencySeconds,
		sanitizerRejectionsTotal,
		warehouseQuerySeconds,
		translationCacheHitsTotal,
		schemaCacheDatabases,
		schemaRefreshTotal,
	)
}

func ObserveAnalyze(outcome string) {
	analyzeRequestsTotal.WithLabelValues(outcome).Inc()
}

func ObserveGeneration(kind string, elapsed time.Duration) {
	generationRequestsTotal.WithLabelValues(kind).Inc()
	generationLatencySeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func IncrementSanitizerRejection() {
	sanitizerRejectionsTotal.Inc()
}

func ObserveWarehouseQuery(elapsed time.Duration) {
	warehouseQuerySeconds.Observe(elapsed.Seconds())
}

func ObserveTranslationCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	translationCacheHitsTotal.WithLabelValues(result).Inc()
}

func SetSchemaCacheDatabases(count int) {
	if count < 0 {
		count = 0
	}
	schemaCacheDatabases.Set(float64(count))
}

func ObserveSchemaRefresh(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	schemaRefreshTotal.WithLabelValues(kind, outcome).Inc()
}
