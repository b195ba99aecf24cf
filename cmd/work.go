package main

import (
	"context"
	"errors"
	"mwdb/internal/worker"
	"mwdb/pkg/logger"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// workCommand constructs the 'work' subcommand running the mirror workers
// until interrupted.
func (a *app) workCommand() *cobra.Command {
	var (
		dir         string
		concurrency int
		databaseURL string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "work",
		Short: "Starts background workers mirroring queued objects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg.Worker
			if dir == "" {
				dir = cfg.Dir
			}
			if dir == "" {
				return errors.New("mirror directory is not configured, use --dir or MWDB_WORKER_DIR")
			}
			if concurrency <= 0 {
				concurrency = cfg.Concurrency
			}
			if metricsAddr == "" {
				metricsAddr = cfg.MetricsAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			m, stopWebserver, err := setupMetrics(ctx, metricsAddr)
			if err != nil {
				return err
			}
			defer stopWebserver()

			c, err := a.client(ctx, m)
			if err != nil {
				return err
			}

			strg, closeStrg, err := a.openPostgres(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer closeStrg()

			// Stop drives the shutdown, so the workers must outlive ctx.
			riverClient, err := worker.Start(context.WithoutCancel(ctx), strg.Pool, worker.Options{
				Concurrency: concurrency,
				Mirror:      worker.NewMirrorWorker(c, dir),
			})
			if err != nil {
				return err //nolint: wrapcheck
			}
			logger.Info(ctx, "workers started", zap.String("dir", dir), zap.Int("concurrency", concurrency))

			// wait for interrupt
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), gracefulShutdownTimeout)
			defer cancel()

			logger.Info(ctx, "stopping workers...")
			if err := riverClient.Stop(shutdownCtx); err != nil {
				logger.Error(ctx, "could not stop workers", zap.Error(err))
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&dir, "dir", "", "Directory the objects are mirrored into")
	flags.IntVar(&concurrency, "concurrency", 0, "Objects mirrored in parallel, defaults to the config value")
	flags.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL, defaults to the config value")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}
