package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	domain "github.com/shopmart/api/internal/domain"
)

const metricsNamespace = "shopmart"

// Metrics owns the Prometheus collectors exported by a process.
type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	latencyMS *prometheus.HistogramVec

	ordersCreated     prometheus.Counter
	orderTransitions  *prometheus.CounterVec
	vendorStatsFailed prometheus.Counter
	lowStock          *prometheus.CounterVec
	statsEvents       *prometheus.CounterVec
	idempotency       *prometheus.CounterVec
}

// NewMetrics registers every collector on a fresh registry, including Go runtime collectors.
func NewMetrics(service string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		latencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "orders_created_total",
			Help:      "Orders placed successfully.",
		}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "order_transitions_total",
			Help:      "Order status changes by target status.",
		}, []string{"to"}),
		vendorStatsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "vendor_stats_failures_total",
			Help:      "Vendor statistics updates that could not be recorded.",
		}),
		lowStock: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "inventory_low_stock_total",
			Help:      "Times a product fell to or below its low stock threshold.",
		}, []string{"product"}),
		statsEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "vendor_stats_events_total",
			Help:      "Vendor statistics events consumed by outcome.",
		}, []string{"outcome"}),
		idempotency: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: service,
			Name:      "idempotency_requests_total",
			Help:      "Keyed requests by idempotency outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.latencyMS,
		m.ordersCreated,
		m.orderTransitions,
		m.vendorStatsFailed,
		m.lowStock,
		m.statsEvents,
		m.idempotency,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPMiddleware counts requests and observes latency keyed by the chi route pattern.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := newResponseRecorder(w)
		start := time.Now()
		next.ServeHTTP(recorder, r)

		route := routeLabel(r)
		m.requests.WithLabelValues(route, logValue(r.Method, 10), strconv.Itoa(recorder.Status())).Inc()
		m.latencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

func (m *Metrics) OrderCreated() {
	m.ordersCreated.Inc()
}

func (m *Metrics) OrderTransitioned(to domain.OrderStatus) {
	m.orderTransitions.WithLabelValues(string(to)).Inc()
}

func (m *Metrics) VendorStatsFailed() {
	m.vendorStatsFailed.Inc()
}

func (m *Metrics) LowStock(productID string) {
	m.lowStock.WithLabelValues(productID).Inc()
}

// StatsEventHandled records a consumed vendor stats event with outcome "applied" or "failed".
func (m *Metrics) StatsEventHandled(outcome string) {
	m.statsEvents.WithLabelValues(outcome).Inc()
}

// IdempotencyOutcome counts a keyed request by how the idempotency guard handled it.
func (m *Metrics) IdempotencyOutcome(outcome string) {
	m.idempotency.WithLabelValues(outcome).Inc()
}
