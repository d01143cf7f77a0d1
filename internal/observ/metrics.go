package observ

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce        sync.Once
	httpRequestsTotal   *prometheus.CounterVec
	httpDurationSeconds *prometheus.HistogramVec
	messagesSentTotal   *prometheus.CounterVec
	reactionsTotal      *prometheus.CounterVec
	messageCacheTotal   *prometheus.CounterVec
)

// RegisterMetrics creates and registers the collectors once per process.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency distribution of HTTP requests.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"method", "route"})

		messagesSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Messages accepted, by kind (message or reply).",
		}, []string{"kind"})

		reactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reactions_total",
			Help: "Reaction changes, by action (added, duplicate, removed).",
		}, []string{"action"})

		messageCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "message_cache_total",
			Help: "Message window cache lookups and writes, by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpDurationSeconds,
			messagesSentTotal,
			reactionsTotal,
			messageCacheTotal,
		)
	})
}

func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

func HTTPDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpDurationSeconds
}

// MessagesSent counts accepted messages.
func MessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return messagesSentTotal
}

// Reactions counts reaction adds and removes.
func Reactions() *prometheus.CounterVec {
	RegisterMetrics()
	return reactionsTotal
}

// MessageCache counts cache hits, misses, fills and drops.
func MessageCache() *prometheus.CounterVec {
	RegisterMetrics()
	return messageCacheTotal
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}
