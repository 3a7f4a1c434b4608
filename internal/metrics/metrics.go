package metrics

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks backend API call duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pickem_api_request_duration_seconds",
			Help:    "Backend API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts backend API calls by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickem_api_requests_total",
			Help: "Total number of backend API requests",
		},
		[]string{"method", "path", "status"},
	)

	// RefreshRunning is 1 while a scheduled game refresh is in flight.
	RefreshRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pickem_game_refresh_running",
			Help: "Number of scheduled game refreshes currently running",
		},
	)

	// RefreshTotal counts scheduled game refreshes by result (ok, error).
	RefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickem_game_refresh_total",
			Help: "Total number of scheduled game refreshes by result",
		},
		[]string{"result"},
	)
)

// StatusTransportError labels requests that never got an HTTP response.
const StatusTransportError = "error"

var (
	numericPathSegment = regexp.MustCompile(`/[0-9]+(/|$)`)
	initOnce           sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal, RefreshRunning, RefreshTotal)
	})
}

// NormalizePath reduces cardinality by replacing numeric path segments with {id}.
// E.g. /admin/users/12 -> /admin/users/{id}.
func NormalizePath(path string) string {
	return numericPathSegment.ReplaceAllString(path, "/{id}$1")
}

// RecordRequest records duration and count for one API call. statusCode 0 means
// the request failed before a response arrived.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := StatusTransportError
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// IncRefreshRunning increments the running refresh gauge (call when a refresh starts).
func IncRefreshRunning() {
	RefreshRunning.Inc()
}

// DecRefreshRunning decrements the running refresh gauge (call when a refresh finishes).
func DecRefreshRunning() {
	RefreshRunning.Dec()
}

// IncRefreshTotal increments the refresh counter for result (ok, error).
func IncRefreshTotal(result string) {
	RefreshTotal.WithLabelValues(result).Inc()
}
