// Package worker runs River workers consuming objects handed over by the
// change listener.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"mwdb/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"go.uber.org/zap/exp/zapslog"
)

// DefaultConcurrency is the number of objects mirrored in parallel.
const DefaultConcurrency = 4

// Options configure Start.
type Options struct {
	// Concurrency is the maximum number of jobs worked at once
	Concurrency int
	// Mirror handles ObjectJobArgs
	Mirror *MirrorWorker
}

// Start registers the workers and starts processing jobs until ctx is done or
// the client is stopped.
func Start(ctx context.Context, dbPool *pgxpool.Pool, opts Options) (*river.Client[pgx.Tx], error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, opts.Mirror)

	riverClient, err := river.NewClient(riverpgxv5.New(dbPool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: opts.Concurrency},
		},
		Workers: workers,
		Logger:  slog.New(zapslog.NewHandler(logger.Get(ctx).Core())),
	})
	if err != nil {
		return nil, fmt.Errorf("could not create river queue client: %w", err)
	}

	if err := riverClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("could not start river queue client: %w", err)
	}

	return riverClient, nil
}
