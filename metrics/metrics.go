// Package metrics exposes Prometheus metrics on a dedicated listen address.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves the Prometheus registry on its own HTTP listener and
// carries the application-level collectors.
type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server

	// RequestsTotal counts API requests by route and status class.
	RequestsTotal *prometheus.CounterVec

	// PipelineRuns counts pipeline executions by direction and outcome.
	PipelineRuns *prometheus.CounterVec

	// PipelineDuration observes end-to-end pipeline latency by direction.
	PipelineDuration *prometheus.HistogramVec

	// AuthOutcomes counts authentication attempts by outcome.
	AuthOutcomes *prometheus.CounterVec
}

// New creates a metrics server for the given service name listening on addr.
func New(name, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &MetricsServer{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: name,
			Name:      "http_requests_total",
			Help:      "API requests by route and status class.",
		}, []string{"route", "status"}),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: name,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline executions by direction and outcome.",
		}, []string{"direction", "outcome"}),
		PipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: name,
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end pipeline latency by direction.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"direction"}),
		AuthOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: name,
			Name:      "auth_attempts_total",
			Help:      "Authentication attempts by outcome.",
		}, []string{"outcome"}),
	}
	registry.MustRegister(m.RequestsTotal, m.PipelineRuns, m.PipelineDuration, m.AuthOutcomes)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	m.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return m, nil
}

// ListenAndServe blocks serving the metrics endpoint.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
