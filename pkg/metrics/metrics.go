// Package metrics exposes per-service RED metrics and the service graph
// counter scraped by Alloy and written to Mimir.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outbound calls between services carry both headers. The receiving side
// counts the edge so each hop is recorded exactly once.
const (
	SourceServiceHeader = "X-Source-Service"
	TargetServiceHeader = "X-Target-Service"
)

type Metrics struct {
	service  string
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	serviceGraph    *prometheus.CounterVec
}

func New(service string) *Metrics {
	m := &Metrics{
		service:  service,
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "handler", "method", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"service", "handler", "method", "status"}),
		serviceGraph: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traces_service_graph_request_total",
			Help: "Total number of requests between services",
		}, []string{"client", "server"}),
	}

	m.registry.MustRegister(
		m.requestDuration,
		m.requestTotal,
		m.serviceGraph,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		handler := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			handler = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)

		m.requestDuration.WithLabelValues(m.service, handler, r.Method, code).Observe(time.Since(start).Seconds())
		m.requestTotal.WithLabelValues(m.service, handler, r.Method, code).Inc()

		if source := r.Header.Get(SourceServiceHeader); source != "" {
			m.serviceGraph.WithLabelValues(source, m.service).Inc()
		}
	})
}
