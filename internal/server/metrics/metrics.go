// Package metrics exposes prometheus collectors for HTTP traffic and domain events.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a registry and every collector registered in it
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	tokenRotations     prometheus.Counter
	sessionRevocations *prometheus.CounterVec
	taskTransitions    *prometheus.CounterVec
	questTransitions   *prometheus.CounterVec
	timersFired        *prometheus.CounterVec
}

// New creates collectors in a fresh registry together with go and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		tokenRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "questline_token_rotations_total",
			Help: "Issued access/refresh token pairs.",
		}),
		sessionRevocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "questline_session_revocations_total",
				Help: "Deleted sessions by reason.",
			},
			[]string{"reason"},
		),
		taskTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "questline_task_transitions_total",
				Help: "Task state transitions.",
			},
			[]string{"transition"},
		),
		questTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "questline_quest_transitions_total",
				Help: "Quest state transitions.",
			},
			[]string{"transition"},
		),
		timersFired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "questline_timers_fired_total",
				Help: "Fired domain timers by kind.",
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.tokenRotations,
		m.sessionRevocations,
		m.taskTransitions,
		m.questTransitions,
		m.timersFired,
	)

	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// TokensRotated counts an issued token pair
func (m *Metrics) TokensRotated() {
	m.tokenRotations.Inc()
}

// SessionRevoked counts a deleted session
func (m *Metrics) SessionRevoked(reason string) {
	m.sessionRevocations.WithLabelValues(reason).Inc()
}

// TaskTransition counts a task state change
func (m *Metrics) TaskTransition(transition string) {
	m.taskTransitions.WithLabelValues(transition).Inc()
}

// QuestTransition counts a quest state change
func (m *Metrics) QuestTransition(transition string) {
	m.questTransitions.WithLabelValues(transition).Inc()
}

// TimerFired counts a fired domain timer
func (m *Metrics) TimerFired(kind string) {
	m.timersFired.WithLabelValues(kind).Inc()
}

// Instrument measures request rate, latency and in-flight requests.
// The path label is the matched route pattern so that ids do not explode cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		path := routeLabel(r)
		m.httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

// routeLabel возвращает шаблон маршрута, выставленный ServeMux
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return "unmatched"
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
