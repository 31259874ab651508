// Package metrics provides Prometheus metrics collection for the efficiency
// model service. It defines the inference, readiness and HTTP metrics that
// are exposed via the Prometheus metrics endpoint for monitoring and alerting.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the model service.
type Metrics struct {
	// Inference metrics
	MLPredictions      prometheus.Counter   // Total number of successful predictions
	MLFailures         prometheus.Counter   // Total number of requests made before a model was loaded
	MLInvalidInputs    prometheus.Counter   // Total number of rejected feature vectors
	MLModelAge         prometheus.Gauge     // Age of the loaded model in seconds
	MLModelReady       prometheus.Gauge     // 1 once a model is bound, 0 before
	MLLatency          prometheus.Histogram // Prediction latency in seconds
	MLPredictionScores prometheus.Histogram // Distribution of predicted efficiency scores

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec   // Requests by route and status code
	HTTPDuration *prometheus.HistogramVec // Request duration by route

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of 5xx responses
}

// New creates and registers all Prometheus metrics using the default registry.
// This is the standard way to create metrics for production use.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of successful predictions",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of requests made before a model was loaded",
		}),
		MLInvalidInputs: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_invalid_inputs_total",
			Help: "Total number of rejected feature vectors",
		}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the loaded model in seconds",
		}),
		MLModelReady: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_ready",
			Help: "Whether a model is loaded (1) or not (0)",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "Prediction latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 12),
		}),
		MLPredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_prediction_scores",
			Help:    "Distribution of predicted efficiency scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of server errors",
		}),
	}
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, seconds float64) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(seconds)
	if status >= 500 {
		m.ErrorsTotal.Inc()
	}
}
