// Package metrics implements prometheus metrics and exposes the metrics
// HTTP handler
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricNamespace     = "vala"
	frontendSubsystem   = "frontend"
	connectionSubsystem = "connections"
	routerSubsystem     = "router"
	staticSubsystem     = "static"
)

var defaultBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// RequestStatus is a Counter of requests handled, by method, dispatch
// outcome and status class
var RequestStatus *prometheus.CounterVec

// RequestDuration is a Histogram of the time taken to handle a request
var RequestDuration *prometheus.HistogramVec

// RequestErrors is a Counter of requests that failed inside the server,
// by kind (panic, incomplete_chain, static, timeout, write)
var RequestErrors *prometheus.CounterVec

// StaticLookups is a Counter of static fallback lookups by result
var StaticLookups *prometheus.CounterVec

// Routes is a Gauge of the number of registered routes
var Routes prometheus.Gauge

// MaxConnections is a Gauge of the configured connection limit
var MaxConnections prometheus.Gauge

// ActiveConnections is a Gauge of currently open connections
var ActiveConnections prometheus.Gauge

// ConnectionsAccepted is a Counter of accepted connections
var ConnectionsAccepted prometheus.Counter

// ConnectionsClosed is a Counter of closed connections
var ConnectionsClosed prometheus.Counter

// ConnectionsFailed is a Counter of failed accepts
var ConnectionsFailed prometheus.Counter

func init() {
	RequestStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: frontendSubsystem,
			Name:      "requests_total",
			Help:      "Count of requests handled by the server",
		},
		[]string{"method", "dispatch", "http_status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Subsystem: frontendSubsystem,
			Name:      "request_duration_seconds",
			Help:      "Histogram of request durations handled by the server",
			Buckets:   defaultBuckets,
		},
		[]string{"method", "dispatch", "http_status"},
	)

	RequestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: frontendSubsystem,
			Name:      "request_errors_total",
			Help:      "Count of requests that failed while being handled",
		},
		[]string{"kind"},
	)

	StaticLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: staticSubsystem,
			Name:      "lookups_total",
			Help:      "Count of static fallback lookups by result",
		},
		[]string{"result"},
	)

	Routes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: routerSubsystem,
			Name:      "routes",
			Help:      "Number of registered routes",
		},
	)

	MaxConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: connectionSubsystem,
			Name:      "max",
			Help:      "Maximum number of concurrent connections",
		},
	)

	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: connectionSubsystem,
			Name:      "active",
			Help:      "Number of open connections",
		},
	)

	ConnectionsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: connectionSubsystem,
			Name:      "accepted_total",
			Help:      "Count of accepted connections",
		},
	)

	ConnectionsClosed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: connectionSubsystem,
			Name:      "closed_total",
			Help:      "Count of closed connections",
		},
	)

	ConnectionsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: connectionSubsystem,
			Name:      "failed_total",
			Help:      "Count of connections that failed to be accepted",
		},
	)

	prometheus.MustRegister(RequestStatus)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(RequestErrors)
	prometheus.MustRegister(StaticLookups)
	prometheus.MustRegister(Routes)
	prometheus.MustRegister(MaxConnections)
	prometheus.MustRegister(ActiveConnections)
	prometheus.MustRegister(ConnectionsAccepted)
	prometheus.MustRegister(ConnectionsClosed)
	prometheus.MustRegister(ConnectionsFailed)
}

// StatusClass returns "2xx" style labels for a status code
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}

// Handler returns the HTTP handler serving the registered metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
