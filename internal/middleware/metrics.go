package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	backendCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_calls_total",
			Help: "Total number of calls to the plant library backend",
		},
		[]string{"method", "route", "status"},
	)

	backendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_call_duration_seconds",
			Help:    "Plant library backend call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	predictionCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prediction_calls_total",
			Help: "Total number of image identification calls",
		},
		[]string{"status"},
	)

	predictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prediction_duration_seconds",
			Help:    "Image identification call duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
	)
)

// Metrics collects Prometheus metrics for each request
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := wrap(w)
		next.ServeHTTP(wrapped, r)

		endpoint := endpointOf(r)
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// endpointOf returns the route template so ids do not explode label cardinality
func endpointOf(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unknown"
}

// RecordBackendCall records one call to the backend. status 0 means the
// call failed before a response arrived.
func RecordBackendCall(method, route string, status int, duration time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	backendCallsTotal.WithLabelValues(method, route, code).Inc()
	backendCallDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordPrediction records one image identification call
func RecordPrediction(duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	predictionCallsTotal.WithLabelValues(status).Inc()
	predictionDuration.Observe(duration.Seconds())
}
