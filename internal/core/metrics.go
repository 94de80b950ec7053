package core

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"floodcast/internal/forecasting"
	"floodcast/internal/types"
)

// PrometheusCollector records API and forecast metrics on its own registry,
// so constructing it twice (as tests do) never panics on duplicate
// registration.
type PrometheusCollector struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

// NewPrometheusCollector registers the floodcast metric families.
func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusCollector{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "floodcast_http_requests_total",
				Help: "Total number of HTTP requests served",
			},
			[]string{"method", "route", "status"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "floodcast_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "floodcast_forecast_outcomes_total",
				Help: "Sensor forecast runs by outcome and method",
			},
			[]string{"outcome", "method"},
		),
	}
}

// RecordRequest implements MetricsCollector.
func (c *PrometheusCollector) RecordRequest(method, route, status string, duration time.Duration) {
	c.requests.WithLabelValues(method, route, status).Inc()
	c.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordOutcome implements forecasting.OutcomeRecorder. Proxy methods are
// collapsed to one label value.
func (c *PrometheusCollector) RecordOutcome(_ context.Context, kind forecasting.OutcomeKind, method types.ForecastMethod) {
	c.outcomes.WithLabelValues(string(kind), methodLabel(method)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func methodLabel(m types.ForecastMethod) string {
	switch {
	case m == "":
		return "none"
	case m.IsProxy():
		return "proxy_model"
	default:
		return string(m)
	}
}
