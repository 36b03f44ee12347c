package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration tracks HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// OrdersTotal tracks checkout outcomes
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Total number of checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	// StockDeductionShortfalls counts deductions that failed after an order was
	// already persisted, i.e. inventory drift needing manual reconciliation
	StockDeductionShortfalls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stock_deduction_shortfalls_total",
			Help: "Stock deductions that failed after order persistence",
		},
	)

	// NotifierFailures counts notification deliveries that did not go through
	NotifierFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_failures_total",
			Help: "Notification deliveries that failed",
		},
		[]string{"sink"},
	)
)

// Checkout outcome label values.
const (
	OutcomePlaced    = "placed"
	OutcomeShortfall = "stock_shortfall"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// GinMiddleware records request counts and latencies per route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		RequestsTotal.WithLabelValues(c.Request.Method, c.FullPath(), status).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, c.FullPath()).Observe(duration)
	}
}
