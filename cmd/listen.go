package main

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"mwdb/internal/config"
	"mwdb/internal/formatter"
	"mwdb/internal/worker"
	"mwdb/pkg/listener"
	"mwdb/pkg/logger"
	"mwdb/pkg/mwdb"
	"mwdb/pkg/storage"
	"mwdb/pkg/storage/memory"
	"mwdb/pkg/storage/yamlfile"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// listenRunner drives a listener and persists its marker after every
// delivered object. With a queue, the object is also enqueued for the mirror
// workers in the transaction that advances the marker.
type listenRunner struct {
	markers storage.MarkerStorage
	queue   storage.Storage
	key     string

	saved listener.Cursor
}

// run prints the listened objects through f until the listener ends or ctx is
// done. listen receives the cursor loaded from storage.
func (r *listenRunner) run(
	ctx context.Context,
	f formatter.Formatter,
	kind mwdb.Kind,
	listen func(cursor *listener.Cursor) iter.Seq2[*mwdb.Object, error],
) error {
	cursor, err := r.markers.Load(ctx, r.key)
	if err != nil {
		return fmt.Errorf("could not load marker: %w", err)
	}
	r.saved = cursor
	logger.Info(ctx, "listening for new objects", zap.String("key", r.key), zap.String("marker", cursor.LastID))

	if err := f.List(ctx, kind, r.track(ctx, &cursor, listen(&cursor))); err != nil {
		if !stopped(ctx, err) {
			return err //nolint: wrapcheck
		}
		// The object being printed was not delivered, its marker stays unsaved.
		logger.Debug(ctx, "listener stopped while printing", zap.Error(err))

		return nil
	}

	// A fresh listener establishes its marker without delivering anything.
	if cursor != r.saved {
		if err := r.markers.Save(context.WithoutCancel(ctx), r.key, cursor); err != nil {
			return fmt.Errorf("could not save marker: %w", err)
		}
	}

	return nil
}

// track persists the cursor once the consumer handled an object. Errors
// caused by ctx cancellation end the sequence quietly.
func (r *listenRunner) track(
	ctx context.Context,
	cursor *listener.Cursor,
	seq iter.Seq2[*mwdb.Object, error],
) iter.Seq2[*mwdb.Object, error] {
	return func(yield func(*mwdb.Object, error) bool) {
		for obj, err := range seq {
			if err != nil {
				if stopped(ctx, err) {
					logger.Debug(ctx, "listener stopped", zap.Error(err))

					return
				}
				yield(nil, err)

				return
			}

			if !yield(obj, nil) {
				return
			}
			if err := r.persist(context.WithoutCancel(ctx), *cursor, obj); err != nil {
				yield(nil, err)

				return
			}
		}
	}
}

// stopped reports whether err was caused by cancelling ctx.
func stopped(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func (r *listenRunner) persist(ctx context.Context, cursor listener.Cursor, obj *mwdb.Object) error {
	if r.queue == nil {
		if err := r.markers.Save(ctx, r.key, cursor); err != nil {
			return fmt.Errorf("could not save marker: %w", err)
		}
		r.saved = cursor

		return nil
	}

	err := r.queue.WithTx(ctx, func(tx storage.AllStorage) error {
		inserted, err := tx.AddJob(ctx, worker.ObjectJobArgs{ID: obj.ID(), ObjectKind: string(obj.Kind())}, nil)
		if err != nil {
			return fmt.Errorf("could not enqueue %s: %w", obj.ID(), err)
		}
		if !inserted {
			logger.Debug(ctx, "object already queued", zap.String("id", obj.ID()))
		}

		return tx.Save(ctx, r.key, cursor)
	})
	if err != nil {
		return fmt.Errorf("could not hand off %s: %w", obj.ID(), err)
	}
	r.saved = cursor

	return nil
}

// newListenRunner selects the marker backend: PostgreSQL when a database is
// configured, otherwise the marker file; "-" keeps markers in memory.
func (a *app) newListenRunner(
	ctx context.Context,
	key, databaseURL, markerFile string,
	enqueue bool,
) (*listenRunner, func(), error) {
	if databaseURL == "" {
		databaseURL = a.cfg.Database.URL
	}

	switch {
	case databaseURL != "":
		pgsql, closeStrg, err := a.openPostgres(ctx, databaseURL)
		if err != nil {
			return nil, nil, err
		}
		r := &listenRunner{markers: pgsql, key: key}
		if enqueue {
			r.queue = pgsql
		}

		return r, closeStrg, nil
	case enqueue:
		return nil, nil, errors.New("--enqueue needs a database, use --database-url or MWDB_DATABASE_URL")
	case markerFile == "-":
		return &listenRunner{markers: memory.New(), key: key}, func() {}, nil
	default:
		return &listenRunner{markers: yamlfile.New(markerFile), key: key}, func() {}, nil
	}
}

func (a *app) listenCommand() *cobra.Command {
	var (
		query       string
		once        bool
		enqueue     bool
		interval    time.Duration
		pageSize    int
		markerFile  string
		databaseURL string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "listen [objects|files|configs|blobs]",
		Short: "Print objects uploaded after the last run",
		Long: "Poll MWDB for newly uploaded objects and print them oldest first. " +
			"The last delivered object is remembered, so the next run resumes where this one stopped.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			objectType := listener.ObjectTypeFile
			if len(args) > 0 {
				var err error
				if objectType, err = parseListing(args[0]); err != nil {
					return err
				}
			}

			cfg := a.cfg.Listener
			if interval <= 0 {
				interval = cfg.Interval
			}
			if pageSize <= 0 {
				pageSize = cfg.PageSize
			}
			if markerFile == "" {
				markerFile = cfg.MarkerFile
			}
			if markerFile == "" {
				markerFile = config.DefaultMarkerPath()
			}
			if metricsAddr == "" {
				metricsAddr = cfg.MetricsAddr
			}
			enqueue = enqueue || cfg.Enqueue

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
			f, err := a.output()
			if err != nil {
				return err
			}

			key := storage.MarkerKey(c.API().APIURL(), objectType, query)
			runner, closeStrg, err := a.newListenRunner(ctx, key, databaseURL, markerFile, enqueue)
			if err != nil {
				return err
			}
			defer closeStrg()

			opts := listener.DefaultOptions(objectType)
			opts.Query = query
			opts.Blocking = !once
			opts.Interval = interval
			opts.PageSize = pageSize
			opts.Metrics = m

			return runner.run(ctx, f, mwdb.KindOf(objectType), func(cursor *listener.Cursor) iter.Seq2[*mwdb.Object, error] {
				return c.Listen(ctx, cursor, opts)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&query, "query", "q", "", "Listen only for objects matching a search query")
	flags.BoolVar(&once, "once", false, "Print what is new and exit instead of polling")
	flags.DurationVar(&interval, "interval", 0, "Pause between polls, defaults to the config value")
	flags.IntVar(&pageSize, "page-size", 0, "Objects requested per poll, defaults to the config value")
	flags.StringVar(&markerFile, "marker-file", "", "File keeping the last seen object, '-' keeps it in memory")
	flags.StringVar(&databaseURL, "database-url", "", "Keep markers in PostgreSQL instead of the marker file")
	flags.BoolVar(&enqueue, "enqueue", false, "Queue every delivered object for the mirror workers")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}
