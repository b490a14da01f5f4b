package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Layout metrics
	LayoutRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layout_runs_total",
			Help: "Total number of layout runs",
		},
		[]string{"status"}, // status: success, failed
	)

	LayoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "layout_duration_seconds",
			Help:    "Duration of a full layout run in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	LayoutTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "layout_tick_duration_seconds",
			Help:    "Duration of a single layout iteration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	LayoutNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_nodes",
			Help: "Number of nodes in the most recent layout",
		},
	)

	LayoutTreeNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_quadtree_nodes",
			Help: "Quad-tree node count on the final iteration of the most recent layout",
		},
	)

	LayoutOverflowLeaves = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_quadtree_overflow_leaves",
			Help: "Overflow leaves created for coincident bodies on the final iteration",
		},
	)

	LayoutPrecalculationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "layout_precalculation_errors_total",
			Help: "Total number of stored layout precalculation errors",
		},
	)

	// Layout cache metrics
	LayoutCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "layout_cache_hits_total",
			Help: "Total number of layout cache hits",
		},
	)

	LayoutCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "layout_cache_misses_total",
			Help: "Total number of layout cache misses",
		},
	)

	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_cache_size_bytes",
			Help: "Approximate size of the layout cache in bytes",
		},
	)

	CacheItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_cache_items",
			Help: "Current number of items in the layout cache",
		},
	)

	CacheEvictions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_cache_evictions",
			Help: "Evictions reported by the layout cache since start",
		},
	)

	// Stored graph metrics
	GraphNodesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graph_nodes_total",
			Help: "Number of nodes in the stored graph",
		},
	)

	GraphLinksTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graph_links_total",
			Help: "Number of links in the stored graph",
		},
	)

	// Database operation metrics
	DBOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_operation_duration_seconds",
			Help:    "Duration of database operations",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"operation"},
	)

	DBOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_operation_errors_total",
			Help: "Total number of database operation errors",
		},
		[]string{"operation"},
	)

	// API request metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope"}, // scope: global, ip
	)

	// Metrics collection error tracking
	MetricsCollectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_collection_errors_total",
			Help: "Total number of errors during metrics collection",
		},
		[]string{"collector"}, // collector: graph
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total number of times a circuit breaker opened",
		},
		[]string{"name"},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active layout stream connections",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of frames sent to stream clients",
		},
	)
)
