package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_rows_total",
			Help: "Input records processed, by outcome",
		},
		[]string{"outcome"},
	)
	FetchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_fetch_attempts_total",
			Help: "Page fetch attempts, by result",
		},
		[]string{"result"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "Cache hits, by cache (html, extraction)",
		},
		[]string{"cache"},
	)
	ModelCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_model_calls_total",
			Help: "Model endpoint calls, by status",
		},
		[]string{"status"},
	)
	RateLimitBackoff = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_rate_limit_backoff_seconds",
			Help:    "Sleep applied after a 429 from the model endpoint",
			Buckets: prometheus.ExponentialBuckets(1, 2, 7),
		},
	)
)

var registerOnce sync.Once

func register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RowsTotal, FetchAttemptsTotal, CacheHitsTotal, ModelCallsTotal, RateLimitBackoff)
	})
}

// Start exposes /metrics on port. An empty port only registers the collectors.
func Start(port string) {
	register()
	if port == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go http.ListenAndServe(":"+port, mux)
}
