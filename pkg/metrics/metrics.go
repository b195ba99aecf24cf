// Package metrics defines the Prometheus collectors of the MWDB client. All
// methods are safe to call on a nil *Metrics, which disables instrumentation.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultBuckets provides histogram buckets in seconds for API latency.
var DefaultBuckets = []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60} //nolint: gochecknoglobals

const namespace = "mwdb"

// Metrics groups the collectors used by the API client and the listener.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retries         *prometheus.CounterVec
	polls           *prometheus.CounterVec
	delivered       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is convenient in tests.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Number of MWDB API requests by method and HTTP status code.",
		}, []string{"method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Latency of MWDB API requests.",
			Buckets:   DefaultBuckets,
		}, []string{"method"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_retries_total",
			Help:      "Number of retried MWDB API requests by reason.",
		}, []string{"reason"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_polls_total",
			Help:      "Number of pages fetched by the change listener.",
		}, []string{"object_type"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_delivered_total",
			Help:      "Number of objects delivered by the change listener.",
		}, []string{"object_type"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.requests, m.requestDuration, m.retries, m.polls, m.delivered} {
			if err := reg.Register(c); err != nil {
				return nil, err //nolint: wrapcheck
			}
		}
	}

	return m, nil
}

// ObserveRequest records a finished API request. A zero code means the request
// never got a response (connection error).
func (m *Metrics) ObserveRequest(method string, code int, took time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(took.Seconds())
}

// Retry records a retried API request. Reason is one of "ratelimit",
// "downtime" or "reauth".
func (m *Metrics) Retry(reason string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(reason).Inc()
}

// Poll records one page fetched by the listener.
func (m *Metrics) Poll(objectType string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(objectType).Inc()
}

// Delivered records one object delivered by the listener.
func (m *Metrics) Delivered(objectType string) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(objectType).Inc()
}
