// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector registers and records the service's metrics
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
	quotaDenied     prometheus.Counter
	agentCalls      *prometheus.CounterVec
	snapshotWrites  prometheus.Counter
}

// NewCollector creates a collector with its own registry
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neuroflux_http_requests_total",
			Help: "HTTP requests by method and status code",
		}, []string{"method", "status"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "neuroflux_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		quotaDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neuroflux_quota_denied_total",
			Help: "Gated operations denied by the quota enforcer",
		}),
		agentCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neuroflux_agent_calls_total",
			Help: "AI provider calls by outcome",
		}, []string{"outcome"}),
		snapshotWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neuroflux_store_snapshot_writes_total",
			Help: "Cache-mode store snapshots written to disk",
		}),
	}

	reg.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.quotaDenied,
		c.agentCalls,
		c.snapshotWrites,
	)

	return c
}

// RecordRequest records one completed HTTP request
func (c *Collector) RecordRequest(method string, status int, duration time.Duration) {
	c.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.requestDuration.Observe(duration.Seconds())
}

// RecordQuotaDenied records a quota denial
func (c *Collector) RecordQuotaDenied() {
	c.quotaDenied.Inc()
}

// RecordAgentCall records an AI provider call outcome ("ok" or "error")
func (c *Collector) RecordAgentCall(outcome string) {
	c.agentCalls.WithLabelValues(outcome).Inc()
}

// RecordSnapshotWrite records a completed store snapshot
func (c *Collector) RecordSnapshotWrite() {
	c.snapshotWrites.Inc()
}

// Handler returns the /metrics endpoint handler
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Instrument wraps an http.Handler to record request metrics
func (c *Collector) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		c.RecordRequest(r.Method, wrapped.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
