package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	starRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starregistry_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	starRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "starregistry_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	starBlocksAppendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starregistry_blocks_appended_total",
		Help: "Total star blocks appended to the ledger.",
	})

	starSubmissionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starregistry_submissions_rejected_total",
		Help: "Total rejected star submissions by reason.",
	}, []string{"reason"})

	starChainHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "starregistry_chain_height",
		Help: "Height of the ledger tip.",
	})

	starChainValid = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "starregistry_chain_valid",
		Help: "1 if the last integrity audit passed, 0 otherwise.",
	})

	starAuditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starregistry_audits_total",
		Help: "Total ledger integrity audits by result.",
	}, []string{"result"})

	starArchiveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starregistry_archive_failures_total",
		Help: "Total blocks that could not be written to the archive.",
	})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		starRequestsTotal.WithLabelValues(method, path, status).Inc()
		starRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordBlockAppended records a star block append at the given height.
func RecordBlockAppended(height int) {
	starBlocksAppendedTotal.Inc()
	starChainHeight.Set(float64(height))
}

// RecordRejection records a rejected submission.
func RecordRejection(reason string) {
	starSubmissionsRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordAudit records the outcome of a ledger integrity audit.
func RecordAudit(height int, valid bool) {
	starChainHeight.Set(float64(height))
	if valid {
		starChainValid.Set(1)
		starAuditsTotal.WithLabelValues("valid").Inc()
	} else {
		starChainValid.Set(0)
		starAuditsTotal.WithLabelValues("invalid").Inc()
	}
}

// RecordArchiveFailure records a block that could not be archived.
func RecordArchiveFailure() {
	starArchiveFailuresTotal.Inc()
}
