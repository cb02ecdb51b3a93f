// Package metrics exposes Prometheus metrics for the LDAP synchronization and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SyncMetrics is what the synchronizer reports to.
type SyncMetrics interface {
	RecordRun(action string, success bool, duration time.Duration)
	RecordUsers(action string, count int)
	RecordSkipped(reason string)
}

type Collector struct {
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	users        *prometheus.CounterVec
	skipped      *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cds_ils_ldap_sync_runs_total",
			Help: "LDAP synchronization runs by action and result",
		}, []string{"action", "result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cds_ils_ldap_sync_duration_seconds",
			Help:    "Duration of LDAP synchronization runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"action"}),
		users: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cds_ils_ldap_sync_users_total",
			Help: "Users updated, added or deleted by the LDAP synchronization",
		}, []string{"action"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cds_ils_ldap_sync_skipped_total",
			Help: "Directory entries or users skipped by the LDAP synchronization",
		}, []string{"reason"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cds_ils_http_requests_total",
			Help: "HTTP responses by status code",
		}, []string{"status_code"}),
	}

	reg.MustRegister(c.runs, c.runDuration, c.users, c.skipped, c.httpRequests)
	return c
}

func (c *Collector) RecordRun(action string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.runs.WithLabelValues(action, result).Inc()
	c.runDuration.WithLabelValues(action).Observe(duration.Seconds())
}

func (c *Collector) RecordUsers(action string, count int) {
	if count <= 0 {
		return
	}
	c.users.WithLabelValues(action).Add(float64(count))
}

func (c *Collector) RecordSkipped(reason string) {
	c.skipped.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
