// Package metrics exposes Prometheus collectors for the HTTP layer, the
// waiting queue event bus and roster ingestion. Every method is nil-safe so
// components can run without metrics in tests.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clinic"

// NewRegistry returns a registry preloaded with runtime collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus text format.
func Handler(reg *prometheus.Registry) echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}

// HTTPMetrics counts requests per route template.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requests, m.latency)
	return m
}

func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.requests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.latency.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// EventMetrics tracks queue event fan-out.
type EventMetrics struct {
	published   *prometheus.CounterVec
	delivered   prometheus.Counter
	subscribers *prometheus.GaugeVec
}

func NewEventMetrics(reg prometheus.Registerer) *EventMetrics {
	m := &EventMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue_events",
			Name:      "published_total",
			Help:      "Queue events published by type",
		}, []string{"type"}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue_events",
			Name:      "delivered_total",
			Help:      "Queue events enqueued into subscriber mailboxes",
		}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue_events",
			Name:      "subscribers",
			Help:      "Open subscriber mailboxes by transport",
		}, []string{"transport"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.published, m.delivered, m.subscribers)
	return m
}

func (m *EventMetrics) ObservePublished(eventType string, deliveries int) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(eventType).Inc()
	m.delivered.Add(float64(deliveries))
}

func (m *EventMetrics) SubscriberOpened(transport string) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues(transport).Inc()
}

func (m *EventMetrics) SubscriberClosed(transport string) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues(transport).Dec()
}

// WorkflowMetrics counts queue transitions and roster ingestion outcomes.
type WorkflowMetrics struct {
	transitions *prometheus.CounterVec
	rosterRows  *prometheus.CounterVec
	conflicts   prometheus.Counter
}

func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	m := &WorkflowMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "transitions_total",
			Help:      "Waiting queue transitions by name",
		}, []string{"transition"}),
		rosterRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schedule",
			Name:      "roster_rows_total",
			Help:      "Uploaded roster rows by outcome",
		}, []string{"outcome"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "checkin_conflicts_total",
			Help:      "Check-ins that returned an identity conflict",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitions, m.rosterRows, m.conflicts)
	return m
}

func (m *WorkflowMetrics) ObserveTransition(name string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(name).Inc()
}

func (m *WorkflowMetrics) ObserveRoster(imported, phoneMatched, conflicts, skipped int) {
	if m == nil {
		return
	}
	m.rosterRows.WithLabelValues("imported").Add(float64(imported))
	m.rosterRows.WithLabelValues("phone_matched").Add(float64(phoneMatched))
	m.rosterRows.WithLabelValues("phone_conflict").Add(float64(conflicts))
	m.rosterRows.WithLabelValues("skipped").Add(float64(skipped))
}

func (m *WorkflowMetrics) ObserveCheckInConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}
