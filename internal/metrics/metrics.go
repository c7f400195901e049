package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	HTTPRequests   *prometheus.CounterVec
	HTTPLatency    *prometheus.HistogramVec
	BotAPIRequests *prometheus.CounterVec
	BotAPILatency  *prometheus.HistogramVec
	ProxyForwards  *prometheus.CounterVec
	AuthAttempts   *prometheus.CounterVec
	WebhookEvents  *prometheus.CounterVec
	JobRuns        *prometheus.CounterVec
	Errors         *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total dashboard API requests by route and status class.",
			}, []string{"route", "status"}),
			HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Latency distribution for dashboard API requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
			BotAPIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "botapi_requests_total",
				Help:      "Total bot API requests by endpoint and status.",
			}, []string{"endpoint", "status"}),
			BotAPILatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "botapi_request_duration_seconds",
				Help:      "Latency distribution for bot API requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"endpoint", "status"}),
			ProxyForwards: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proxy_forwards_total",
				Help:      "Total edge proxy forwards by method and status class.",
			}, []string{"method", "status"}),
			AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Total authentication attempts by outcome.",
			}, []string{"outcome"}),
			WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Total payment webhook events by result.",
			}, []string{"result"}),
			JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Total background job runs by job and outcome.",
			}, []string{"job", "outcome"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.HTTPRequests,
			metricsInstance.HTTPLatency,
			metricsInstance.BotAPIRequests,
			metricsInstance.BotAPILatency,
			metricsInstance.ProxyForwards,
			metricsInstance.AuthAttempts,
			metricsInstance.WebhookEvents,
			metricsInstance.JobRuns,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
