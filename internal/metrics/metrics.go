// Package metrics provides Prometheus instrumentation for the digital twin service.
package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "damtwin",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "damtwin",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// SubmissionsTotal counts encrypted sensor readings accepted.
	SubmissionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "damtwin",
			Name:      "submissions_total",
			Help:      "Total encrypted sensor readings accepted.",
		},
	)

	// AssessmentsRequestedTotal counts risk assessment requests registered.
	AssessmentsRequestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "damtwin",
			Name:      "assessments_requested_total",
			Help:      "Total risk assessment requests registered with the coprocessor.",
		},
	)

	// AssessmentDeliveriesTotal counts callback deliveries by result.
	AssessmentDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "damtwin",
			Name:      "assessment_deliveries_total",
			Help:      "Total assessment callback deliveries by result.",
		},
		[]string{"result"}, // assessed, invalid_proof, unknown_request, error
	)

	// RiskWarningsTotal counts verified assessments that carried a warning.
	RiskWarningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "damtwin",
			Name:      "risk_warnings_total",
			Help:      "Total verified assessments flagged as warnings.",
		},
	)

	// PendingRequests tracks assessment requests awaiting a callback.
	// There is no expiry path, so a stuck coprocessor shows up here first.
	PendingRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "damtwin",
			Name:      "pending_requests",
			Help:      "Assessment requests awaiting a coprocessor callback.",
		},
	)

	// ActiveWebSocketClients tracks connected event feed clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "damtwin",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "damtwin", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "damtwin", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SubmissionsTotal,
		AssessmentsRequestedTotal,
		AssessmentDeliveriesTotal,
		RiskWarningsTotal,
		PendingRequests,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBInUseConnections,
	)
}

// Handler returns the /metrics HTTP handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// GinMiddleware records request counts and latencies per route pattern.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := statusLabel(c.Writer.Status())

		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// StartDBCollector periodically exports sql.DB pool stats until ctx is done.
func StartDBCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := db.Stats()
				DBOpenConnections.Set(float64(stats.OpenConnections))
				DBInUseConnections.Set(float64(stats.InUse))
			}
		}
	}()
}

func statusLabel(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
