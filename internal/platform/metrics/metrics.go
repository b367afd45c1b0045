package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics defines the counters emitted by the upload, changelog and
// watch list services.
type Metrics interface {
	IncUploadExamined(verdict, reason string)
	IncChangelogCheck(status, failure string)
	IncChangelogAlert(result string)
	IncWatchlistToggle(action string)
}

// HTTPMetrics captures request metrics for the admin and upload API.
type HTTPMetrics interface {
	ObserveRequest(method, route, status string, durationSeconds float64)
}

// Noop implements Metrics and HTTPMetrics without emitting anything.
type Noop struct{}

func (Noop) IncUploadExamined(string, string)                {}
func (Noop) IncChangelogCheck(string, string)                {}
func (Noop) IncChangelogAlert(string)                        {}
func (Noop) IncWatchlistToggle(string)                       {}
func (Noop) ObserveRequest(string, string, string, float64) {}

// Prom implements Metrics and HTTPMetrics backed by Prometheus collectors.
type Prom struct {
	uploads  *prometheus.CounterVec
	checks   *prometheus.CounterVec
	alerts   *prometheus.CounterVec
	toggles  *prometheus.CounterVec
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	gatherer prometheus.Gatherer
}

// NewProm registers the collectors with reg. A nil reg uses a fresh
// registry so repeated construction never panics on duplicate registration.
func NewProm(namespace string, reg *prometheus.Registry) *Prom {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	p := &Prom{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_examined_total",
			Help:      "Uploads examined by verdict and rejection reason",
		}, []string{"verdict", "reason"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changelog_checks_total",
			Help:      "Changelog checks by status and failure class",
		}, []string{"status", "failure"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changelog_alerts_total",
			Help:      "Changelog mismatch alerts by delivery result",
		}, []string{"result"}),
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watchlist_toggles_total",
			Help:      "Watch list toggles by resulting action",
		}, []string{"action"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		gatherer: reg,
	}
	reg.MustRegister(p.uploads, p.checks, p.alerts, p.toggles, p.requests, p.latency)
	return p
}

func (p *Prom) IncUploadExamined(verdict, reason string) {
	p.uploads.WithLabelValues(verdict, reason).Inc()
}

func (p *Prom) IncChangelogCheck(status, failure string) {
	p.checks.WithLabelValues(status, failure).Inc()
}

func (p *Prom) IncChangelogAlert(result string) {
	p.alerts.WithLabelValues(result).Inc()
}

func (p *Prom) IncWatchlistToggle(action string) {
	p.toggles.WithLabelValues(action).Inc()
}

func (p *Prom) ObserveRequest(method, route, status string, durationSeconds float64) {
	p.requests.WithLabelValues(method, route, status).Inc()
	p.latency.WithLabelValues(method, route).Observe(durationSeconds)
}

// Handler returns an HTTP handler for /metrics serving this instance's registry.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}
