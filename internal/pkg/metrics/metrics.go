// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speechquest_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "speechquest_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	SpeechCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speechquest_speech_calls_total",
			Help: "Calls to the remote speech service by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	SpeechLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "speechquest_speech_latency_seconds",
			Help:    "Latency of remote speech service calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"endpoint"},
	)

	PromptCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speechquest_prompt_cache_total",
			Help: "Prompt audio cache lookups by result",
		},
		[]string{"result"},
	)

	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speechquest_session_transitions_total",
			Help: "Recording session state transitions",
		},
		[]string{"kind", "state"},
	)

	WatchdogStops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "speechquest_watchdog_stops_total",
			Help: "Recordings stopped by the duration ceiling",
		},
	)

	Purchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speechquest_purchases_total",
			Help: "Shop purchase attempts by outcome",
		},
		[]string{"outcome"},
	)

	MissionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speechquest_missions_completed_total",
			Help: "First-time mission completions by planet",
		},
		[]string{"planet"},
	)

	LiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "speechquest_live_sessions",
			Help: "Number of connected live recording sessions",
		},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency keyed by the matched chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		RequestCount.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
