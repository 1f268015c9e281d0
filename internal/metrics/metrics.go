// Package metrics exports keygate's Prometheus instruments.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "keygate"

// Recorder owns every instrument and the registry they live in. It satisfies
// service.Observer.
type Recorder struct {
	registry *prometheus.Registry

	issues        *prometheus.CounterVec
	validations   *prometheus.CounterVec
	expired       prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// NewRecorder creates a Recorder on a fresh registry that also carries the Go
// runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		issues: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "issue_requests_total",
				Help:      "Key issuance requests by outcome",
			},
			[]string{"outcome"},
		),
		validations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validate_requests_total",
				Help:      "Key validation requests by outcome",
			},
			[]string{"outcome"},
		),
		expired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_keys_deleted_total",
			Help:      "Expired keys removed by the sweeper",
		}),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpDurations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// IssueOutcome counts one issuance by outcome.
func (r *Recorder) IssueOutcome(outcome string) {
	r.issues.WithLabelValues(outcome).Inc()
}

// ValidateOutcome counts one validation by outcome.
func (r *Recorder) ValidateOutcome(outcome string) {
	r.validations.WithLabelValues(outcome).Inc()
}

// ExpiredDeleted adds n swept keys.
func (r *Recorder) ExpiredDeleted(n int64) {
	if n > 0 {
		r.expired.Add(float64(n))
	}
}

// ObserveHTTP records one finished HTTP request.
func (r *Recorder) ObserveHTTP(method, path, status string, seconds float64) {
	r.httpRequests.WithLabelValues(method, path, status).Inc()
	r.httpDurations.WithLabelValues(method, path).Observe(seconds)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
