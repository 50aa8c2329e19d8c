// Package telemetry exposes the bridge's Prometheus metrics and lightweight
// per-request step traces.
package telemetry

import (
	"net/http"
	"runtime"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "httpbridge"

// Import results used as label values.
const (
	ResultOK            = "ok"
	ResultMissingHeader = "missing_header"
	ResultInvalidURI    = "invalid_uri"
	ResultRateLimited   = "rate_limited"
	ResultBodyTooLarge  = "body_too_large"
)

// Metrics owns a private registry so that several servers, and tests, can
// live in one process. All methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	imports   *prometheus.CounterVec
	bodyBytes *prometheus.CounterVec
	responses *prometheus.CounterVec
	inflight  prometheus.Gauge
	steps     *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Requests imported from the engine, by result.",
		}, []string{"result"}),
		bodyBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "body_bytes_total",
			Help:      "Body bytes passed through the bridge, by direction.",
		}, []string{"direction"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Responses exported to the engine, by status code.",
		}, []string{"code"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_requests",
			Help:      "Requests currently between import and end of export.",
		}),
		steps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_step_seconds",
			Help:      "Duration of request handling steps.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 10),
		}, []string{"trace", "step"}),
	}

	heapAlloc := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "heap_alloc_bytes",
		Help:      "Current heap allocation in bytes.",
	}, func() float64 {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)
		return float64(stats.HeapAlloc)
	})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		heapAlloc,
		m.imports,
		m.bodyBytes,
		m.responses,
		m.inflight,
		m.steps,
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Import counts one import attempt with the given result.
func (m *Metrics) Import(result string) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(result).Inc()
}

// RequestBytes counts request body bytes delivered to the bridge.
func (m *Metrics) RequestBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bodyBytes.WithLabelValues("in").Add(float64(n))
}

// ResponseBytes counts response body bytes written to the engine.
func (m *Metrics) ResponseBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bodyBytes.WithLabelValues("out").Add(float64(n))
}

// Response counts one exported status code.
func (m *Metrics) Response(code int) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(strconv.Itoa(code)).Inc()
}

// Begin marks a request as in flight; the returned func ends it.
func (m *Metrics) Begin() func() {
	if m == nil {
		return func() {}
	}
	m.inflight.Inc()
	return m.inflight.Dec
}
