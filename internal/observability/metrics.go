package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus series the router, renderer, and scheduler update inline
// at their source of truth, rather than via a periodic poller.
var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seoshield_requests_total",
			Help: "Total inbound requests by dispatch class and cache status.",
		},
		[]string{"class", "cache_status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seoshield_request_duration_seconds",
			Help:    "Inbound request duration in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"class"},
	)

	RenderTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seoshield_renders_total",
			Help: "Total render jobs by outcome.",
		},
		[]string{"outcome"},
	)

	RenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seoshield_render_duration_seconds",
			Help:    "Render job duration in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
	)

	RenderQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seoshield_render_queue_depth",
			Help: "Current number of queued (not yet running) render jobs.",
		},
	)

	RenderProcessing = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seoshield_render_processing",
			Help: "Current number of in-flight render jobs.",
		},
	)

	BreakerOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seoshield_render_circuit_open",
			Help: "1 if the render circuit breaker is open, else 0.",
		},
	)

	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seoshield_cache_hits_total",
			Help: "Total cache hits across fresh and stale reads.",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seoshield_cache_misses_total",
			Help: "Total cache misses.",
		},
	)

	CacheStaleServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seoshield_cache_stale_served_total",
			Help: "Total responses served from a stale (SWR) snapshot.",
		},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seoshield_events_dropped_total",
			Help: "Total observability events dropped because the channel was full.",
		},
	)
)
