package main

import (
	"context"
	"errors"
	"fmt"
	"mwdb/internal/server"
	"mwdb/pkg/logger"
	"mwdb/pkg/metrics"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const gracefulShutdownTimeout = 10 * time.Second

// setupMetrics registers the client collectors and, when addr is set, serves
// them over HTTP. The returned function stops the webserver.
func setupMetrics(ctx context.Context, addr string) (*metrics.Metrics, func(), error) {
	if addr == "" {
		return nil, func() {}, nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return nil, nil, fmt.Errorf("could not register metrics: %w", err)
	}

	srv := server.New(server.Options{Addr: addr, Gatherer: reg})
	go func() {
		logger.Info(ctx, "starting webserver...", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "could not start webserver", zap.Error(err))
			}
		}
	}()

	return m, func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), gracefulShutdownTimeout)
		defer cancel()

		logger.Info(ctx, "stopping webserver...")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "could not stop webserver", zap.Error(err))
		}
	}, nil
}
