package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the scheduling engine.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	reservations       *prometheus.CounterVec
	ruleDenials        *prometheus.CounterVec
	sessionTransitions *prometheus.CounterVec
	runFinalizations   *prometheus.CounterVec
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_reservations_total",
		Help: "Slot reservation attempts by outcome",
	}, []string{"scope", "outcome"})

	ruleDenials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_rule_denials_total",
		Help: "Rule evaluation denials by rule kind",
	}, []string{"kind"})

	sessionTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_session_transitions_total",
		Help: "Session state transitions by target state",
	}, []string{"to"})

	runFinalizations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_run_finalizations_total",
		Help: "Run finalizations by terminal status",
	}, []string{"status"})

	registry.MustRegister(requestDuration, requestTotal, reservations, ruleDenials, sessionTransitions, runFinalizations)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		reservations:       reservations,
		ruleDenials:        ruleDenials,
		sessionTransitions: sessionTransitions,
		runFinalizations:   runFinalizations,
	}
}

// Handler exposes the /metrics endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveHTTPRequest records one HTTP request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, fmt.Sprintf("%d", status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveReservation records a reservation attempt outcome for a scope
// ("plan", "session" or "run").
func (m *MetricsService) ObserveReservation(scope, outcome string) {
	m.reservations.WithLabelValues(scope, outcome).Inc()
}

// ObserveRuleDenial records a denial by rule kind.
func (m *MetricsService) ObserveRuleDenial(kind string) {
	m.ruleDenials.WithLabelValues(kind).Inc()
}

// ObserveSessionTransition records a session state transition.
func (m *MetricsService) ObserveSessionTransition(to string) {
	m.sessionTransitions.WithLabelValues(to).Inc()
}

// ObserveRunFinalization records a run reaching a terminal status.
func (m *MetricsService) ObserveRunFinalization(status string) {
	m.runFinalizations.WithLabelValues(status).Inc()
}
