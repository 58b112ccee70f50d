// Package metrics provides Prometheus metrics collection for the venue
// router. It defines and manages the routing, model, and quote-feed metrics
// exposed on the Prometheus endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the venue router.
type Metrics struct {
	// Routing metrics
	RoutesTotal      prometheus.Counter   // Total number of successful routing decisions
	RouteFailures    prometheus.Counter   // Total number of failed routing calls
	RouteLatency     prometheus.Histogram // Routing latency in seconds
	PredictionScores prometheus.Histogram // Distribution of predicted price improvements

	// Model registry metrics
	RegistrySize prometheus.Gauge // Number of venue models in the loaded registry
	ModelAge     prometheus.Gauge // Age of the loaded model artifact in seconds

	// Quote feed metrics
	QuotesReceived prometheus.Counter // Total number of quote messages received
	WSReconnects   prometheus.Counter // Total number of quote feed reconnections

	// Persistence metrics
	DecisionsStored prometheus.Counter // Total number of routing decisions persisted

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// This allows for isolated metric collection in tests without affecting
// the global Prometheus registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		RoutesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "routes_total",
			Help: "Total number of successful routing decisions",
		}),
		RouteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "route_failures_total",
			Help: "Total number of failed routing calls",
		}),
		RouteLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "route_latency_seconds",
			Help:    "Routing decision latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		PredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_scores",
			Help:    "Distribution of predicted price improvements",
			Buckets: prometheus.LinearBuckets(-0.05, 0.01, 20),
		}),
		RegistrySize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "registry_size",
			Help: "Number of venue models in the loaded registry",
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}),
		QuotesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "quotes_received_total",
			Help: "Total number of quote messages received",
		}),
		WSReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "ws_reconnects_total",
			Help: "Total number of quote feed reconnections",
		}),
		DecisionsStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "decisions_stored_total",
			Help: "Total number of routing decisions persisted",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}
