// Package metrics exposes Prometheus collectors for the order core.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	ordersCreated    *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	cartOperations   *prometheus.CounterVec
	messagesConsumed *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "food_delivery_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "food_delivery_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "food_delivery_orders_created_total",
			Help: "Orders placed, by source (cart or items).",
		}, []string{"source"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "food_delivery_status_transitions_total",
			Help: "Accepted status transitions by entity and target status.",
		}, []string{"entity", "to"}),
		cartOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "food_delivery_cart_operations_total",
			Help: "Cart mutations by operation.",
		}, []string{"op"}),
		messagesConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "food_delivery_messages_consumed_total",
			Help: "Broker messages handled by consumer and outcome.",
		}, []string{"consumer", "outcome"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.ordersCreated,
		m.transitions,
		m.cartOperations,
		m.messagesConsumed,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// The recorders below accept a nil receiver so services can run without metrics.

func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) OrderCreated(source string) {
	if m == nil {
		return
	}
	m.ordersCreated.WithLabelValues(source).Inc()
}

func (m *Metrics) Transition(entity, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, to).Inc()
}

func (m *Metrics) CartOperation(op string) {
	if m == nil {
		return
	}
	m.cartOperations.WithLabelValues(op).Inc()
}

func (m *Metrics) MessageConsumed(consumer, outcome string) {
	if m == nil {
		return
	}
	m.messagesConsumed.WithLabelValues(consumer, outcome).Inc()
}
