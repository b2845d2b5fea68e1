// Package metrics provides Prometheus instrumentation for the service:
// HTTP request metrics, tool dispatch metrics, catalog cache effectiveness
// and notification delivery counters, all registered against a private
// registry exposed on GET /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pizza_mcp"

var (
	// RequestDuration tracks how long each HTTP request takes,
	// broken down by method, route path, and status code.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts all HTTP requests.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// RequestInFlight tracks how many requests are currently being served.
	RequestInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being served.",
	})

	// ToolCalls counts tool invocations by tool name and outcome
	// ("ok", "error", "unauthorized", "forbidden").
	ToolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "calls_total",
			Help:      "Total tool invocations.",
		},
		[]string{"tool", "outcome"},
	)

	// ToolCallDuration tracks per-tool dispatch latency.
	ToolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "call_duration_seconds",
			Help:      "Duration of tool dispatch in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	// CacheHits / CacheMisses track catalog snapshot effectiveness; a miss
	// means the read had to rebuild from the store.
	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Catalog reads served from the installed snapshot.",
	})
	CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Catalog reads that rebuilt the snapshot from the store.",
	})

	// NotificationsSent counts subscriber deliveries by transport
	// ("sse", "websocket") and status ("ok", "failed").
	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification deliveries to subscribers.",
		},
		[]string{"transport", "status"},
	)

	// Subscribers tracks the number of active notification subscribers.
	Subscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "subscribers",
			Help:      "Active notification subscribers.",
		},
		[]string{"transport"},
	)

	// OrdersPlaced counts successfully persisted orders.
	OrdersPlaced = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "placed_total",
		Help:      "Orders successfully placed.",
	})

	// OrdersCancelled counts successful cancellations.
	OrdersCancelled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "cancelled_total",
		Help:      "Orders successfully cancelled.",
	})
)

// DefaultRegistry is the Prometheus registry used by the service.
// Register custom metrics against this.
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	// Go runtime metrics (GC, goroutines, memory)
	DefaultRegistry.MustRegister(collectors.NewGoCollector())
	// OS process metrics (CPU, open FDs)
	DefaultRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	DefaultRegistry.MustRegister(
		RequestDuration,
		RequestTotal,
		RequestInFlight,
		ToolCalls,
		ToolCallDuration,
		CacheHits,
		CacheMisses,
		NotificationsSent,
		Subscribers,
		OrdersPlaced,
		OrdersCancelled,
	)
}

// MustRegister adds collectors to the service registry, panicking on
// duplicates.
func MustRegister(c ...prometheus.Collector) {
	DefaultRegistry.MustRegister(c...)
}

// Middleware records Prometheus metrics for every request: duration
// histogram, total counter, in-flight gauge. The matched route pattern is
// used as the path label to keep cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		RequestInFlight.Inc()
		defer RequestInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		RequestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

// Handler exposes the Prometheus metrics page. Mount it on GET /metrics.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	return gin.WrapH(h)
}

// ObserveToolCall records one tool dispatch:
//
//	defer metrics.ObserveToolCall("get_pizzas", &outcome, time.Now())
func ObserveToolCall(tool string, outcome *string, start time.Time) {
	ToolCalls.WithLabelValues(tool, *outcome).Inc()
	ToolCallDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
}
