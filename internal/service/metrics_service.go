package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Revocation check outcomes recorded by the authentication middleware.
const (
	RevocationOutcomeClear   = "clear"
	RevocationOutcomeRevoked = "revoked"
	RevocationOutcomeError   = "error"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	sessionsOpened   *prometheus.CounterVec
	tokensRevoked    prometheus.Counter
	revocationChecks *prometheus.CounterVec
	dbQueryDuration  *prometheus.HistogramVec
}

// NewMetricsService registers core Prometheus collectors.
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

	sessionsOpened := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_sessions_opened_total",
		Help: "Sessions opened, by entry point",
	}, []string{"via"})

	tokensRevoked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_tokens_revoked_total",
		Help: "Access tokens placed on the revocation list",
	})

	revocationChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_revocation_checks_total",
		Help: "Revocation list lookups, by outcome",
	}, []string{"outcome"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, sessionsOpened, tokensRevoked, revocationChecks, dbQueryDuration, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		sessionsOpened:   sessionsOpened,
		tokensRevoked:    tokensRevoked,
		revocationChecks: revocationChecks,
		dbQueryDuration:  dbQueryDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordSessionOpened counts a successful login or refresh.
func (m *MetricsService) RecordSessionOpened(via string) {
	if m == nil {
		return
	}
	m.sessionsOpened.WithLabelValues(via).Inc()
}

// RecordTokenRevoked counts a logout revocation.
func (m *MetricsService) RecordTokenRevoked() {
	if m == nil {
		return
	}
	m.tokensRevoked.Inc()
}

// RecordRevocationCheck counts a revocation list lookup by outcome.
func (m *MetricsService) RecordRevocationCheck(outcome string) {
	if m == nil {
		return
	}
	m.revocationChecks.WithLabelValues(outcome).Inc()
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}
