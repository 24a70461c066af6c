package metrics

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RealtimeClients is the number of connected WebSocket clients.
	RealtimeClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_clients",
			Help: "Number of connected realtime clients",
		},
	)

	// PostEventsTotal counts broadcast post events by action (create, update, delete).
	PostEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "post_events_total",
			Help: "Total number of post events broadcast by action",
		},
		[]string{"action"},
	)

	// ImageRemovalsTotal counts image file removals by result (removed, failed).
	ImageRemovalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_removals_total",
			Help: "Total number of image file removals by result",
		},
		[]string{"result"},
	)
)

var (
	idPathSegment = regexp.MustCompile(`/([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}|[0-9]+)(/|$)`)
	initOnce      sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal, RealtimeClients, PostEventsTotal, ImageRemovalsTotal)
	})
}

// NormalizePath reduces cardinality by replacing UUID and numeric path segments with {id}.
// E.g. /feed/post/0b9e6f3a-1c2d-4e5f-8a9b-0c1d2e3f4a5b -> /feed/post/{id}.
// Everything under /images/ collapses to /images/{file}.
func NormalizePath(path string) string {
	if strings.HasPrefix(path, "/images/") {
		return "/images/{file}"
	}
	return idPathSegment.ReplaceAllString(path, "/{id}$2")
}

// RecordRequest records duration and count for an HTTP request.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// SetRealtimeClients sets the connected client gauge.
func SetRealtimeClients(n int) {
	RealtimeClients.Set(float64(n))
}

// IncPostEvents increments the broadcast counter for action.
func IncPostEvents(action string) {
	PostEventsTotal.WithLabelValues(action).Inc()
}

// IncImageRemovals increments the removal counter for result (removed, failed).
func IncImageRemovals(result string) {
	ImageRemovalsTotal.WithLabelValues(result).Inc()
}
