package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "catalog",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "upstream_requests_total",
		Help:      "Total TMDB API requests by endpoint template and result status.",
	}, []string{"endpoint", "status"})

	UpstreamRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "catalog",
		Name:      "upstream_request_duration_seconds",
		Help:      "TMDB API request duration in seconds, limiter wait excluded.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	LimiterActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "catalog",
		Name:      "limiter_active_tasks",
		Help:      "Tasks currently executing inside the request limiter.",
	})

	LimiterQueued = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "catalog",
		Name:      "limiter_queued_tasks",
		Help:      "Tasks waiting in the request limiter queue.",
	})

	LimiterWaitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "catalog",
		Name:      "limiter_wait_seconds",
		Help:      "Time a task spent queued before dispatch.",
		Buckets:   []float64{0, 0.005, 0.02, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "cache_hits_total",
		Help:      "Cache hits by cache name.",
	}, []string{"cache"})

	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "cache_misses_total",
		Help:      "Cache misses by cache name.",
	}, []string{"cache"})

	CacheResetsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "cache_resets_total",
		Help:      "Number of full cache resets (locale changes).",
	})

	QueryPagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "query_pages_total",
		Help:      "Pages fetched by the paginating query engine by outcome.",
	}, []string{"status"})

	EnrichmentDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "enrichment_dropped_total",
		Help:      "Items dropped by the enrichment pipeline by reason.",
	}, []string{"reason"})

	ImageProxyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "catalog",
		Name:      "image_proxy_duration_seconds",
		Help:      "Image CDN fetch duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		UpstreamRequestsTotal,
		UpstreamRequestDuration,
		LimiterActive,
		LimiterQueued,
		LimiterWaitDuration,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheResetsTotal,
		QueryPagesTotal,
		EnrichmentDroppedTotal,
		ImageProxyDuration,
	)
}
