// Package server configures the HTTP server exposing the listener's
// Prometheus metrics, health check and profiling endpoints.
package server

import (
	"mwdb/pkg/controller"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// DefaultMetricsPath is where metrics are served when Options.MetricsPath is empty.
	DefaultMetricsPath = "/metrics"
	// DefaultReadHeaderTimeout bounds reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultRequestTimeout bounds a single request; it leaves room for a
	// 30 second CPU profile.
	DefaultRequestTimeout = time.Minute
)

// Options holds configuration for the HTTP server.
type Options struct {
	// Addr is the TCP address the server listens on, e.g. ":9090".
	Addr string
	// MetricsPath is the HTTP path at which Prometheus metrics are served.
	MetricsPath string
	// ReadHeaderTimeout is the amount of time allowed to read request headers.
	ReadHeaderTimeout time.Duration
	// RequestTimeout is applied via http.TimeoutHandler.
	RequestTimeout time.Duration
	// Gatherer provides the metrics. Nil serves prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// New wires up and returns a configured *http.Server. It serves:
//   - Prometheus metrics (MetricsPath)
//   - a liveness check (/healthz)
//   - pprof endpoints (/debug/pprof/)
//
// Every request goes through the logging middleware.
func New(opts Options) *http.Server {
	if opts.MetricsPath == "" {
		opts.MetricsPath = DefaultMetricsPath
	}
	if opts.ReadHeaderTimeout <= 0 {
		opts.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle(opts.MetricsPath, promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", controller.Healthz)
	controller.RegisterPprof(mux)

	handler := controller.WithLogger(mux)

	return &http.Server{
		Addr:              opts.Addr,
		Handler:           http.TimeoutHandler(handler, opts.RequestTimeout, "request timed out"),
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}
}
