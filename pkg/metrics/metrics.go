// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks bridge HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_request_duration_seconds",
			Help:    "Bridge HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total bridge HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_requests_total",
			Help: "Total bridge HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LLMRequestDuration tracks provider round-trip duration.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM provider request duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider", "model", "status"},
	)

	// LLMFailuresTotal tracks normalized failures by kind.
	LLMFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_failures_total",
			Help: "Total LLM requests that ended in a failure result",
		},
		[]string{"provider", "kind"},
	)

	// MessagesTotal tracks messages appended to conversations.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages appended to conversations",
		},
		[]string{"model", "role"},
	)

	// StoreWritesTotal tracks persistence writes.
	StoreWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_writes_total",
			Help: "Total conversation store persistence writes",
		},
		[]string{"op", "status"},
	)

	// InFlightRequests tracks sends currently awaiting a provider.
	InFlightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "llm_requests_in_flight",
			Help: "Number of provider requests in flight",
		},
	)
)

// RecordRequest records metrics for a bridge HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMRequest records metrics for one routed provider call.
func RecordLLMRequest(provider, model, status string, duration float64) {
	LLMRequestDuration.WithLabelValues(provider, model, status).Observe(duration)
}

// RecordLLMFailure counts a failure result.
func RecordLLMFailure(provider, kind string) {
	LLMFailuresTotal.WithLabelValues(provider, kind).Inc()
}

// RecordStoreWrite counts one persistence write.
func RecordStoreWrite(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreWritesTotal.WithLabelValues(op, status).Inc()
}
