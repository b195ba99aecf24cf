package listener

import (
	"context"
	"fmt"
	"iter"
	"mwdb/pkg/logger"
	"mwdb/pkg/metrics"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is the pause between polls when nothing new was found.
const DefaultInterval = 15 * time.Second

// Options configure a single Listen call.
type Options struct {
	// ObjectType selects the listing to poll. Empty means ObjectTypeAll.
	ObjectType ObjectType
	// Query optionally restricts the listing to objects matching a search query.
	Query string
	// Blocking keeps the sequence alive when nothing new is found: the listener
	// pauses for Interval and polls again. When false the sequence ends after
	// the first pass that finds nothing new.
	Blocking bool
	// Interval is the pause between polls in blocking mode.
	Interval time.Duration
	// PageSize is the number of objects requested per poll; 0 uses the server
	// default. At most PageSize objects can be picked up between two polls,
	// see Listen.
	PageSize int
	// Sleep pauses between polls. The default honors ctx cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
	// Metrics, when set, counts polls and deliveries.
	Metrics *metrics.Metrics
}

// DefaultOptions returns blocking options for the given object type.
func DefaultOptions(objectType ObjectType) Options {
	return Options{
		ObjectType: objectType,
		Blocking:   true,
		Interval:   DefaultInterval,
	}
}

// Listen returns a lazy sequence of objects that appeared after cursor.LastID,
// delivered oldest-first.
//
// When cursor.LastID is empty the first step only records the newest object
// as the marker and delivers nothing. Every following step fetches the most
// recent page and delivers the entries newer than the marker. cursor.LastID is
// set to each object's ID right before it is yielded, so after a batch it
// holds the newest delivered ID and a caller that stops ranging can resume
// from it without duplicates.
//
// If more objects appeared between two polls than fit in one page, the marker
// is no longer on the page and the whole page is delivered; the objects that
// fell off the page are skipped. This is an accepted limitation of polling a
// single page and existing integrations rely on it; use a PageSize large
// enough for the expected upload rate.
//
// A fetch error is yielded once with a zero object and ends the sequence. The
// listener never retries on its own: retry and back-off belong to the Fetcher.
// To resume, call Listen again with the same cursor.
func Listen[T Object](ctx context.Context, fetcher Fetcher[T], cursor *Cursor, opts Options) iter.Seq2[T, error] {
	if opts.ObjectType == "" {
		opts.ObjectType = ObjectTypeAll
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	if cursor == nil {
		cursor = &Cursor{}
	}

	return func(yield func(T, error) bool) {
		var zero T
		ctx := logger.WithFields(ctx, zap.String("objectType", string(opts.ObjectType)))

		if cursor.LastID == "" {
			page, err := poll(ctx, fetcher, opts)
			if err != nil {
				yield(zero, err)

				return
			}
			if len(page) > 0 {
				cursor.LastID = page[0].ID()
			}
			logger.Debug(ctx, "listener started from newest object", zap.String("marker", cursor.LastID))
		}

		for {
			page, err := poll(ctx, fetcher, opts)
			if err != nil {
				yield(zero, err)

				return
			}

			batch := Unseen(page, cursor.LastID)
			if len(batch) == len(page) && len(page) > 0 && cursor.LastID != "" {
				logger.Warn(ctx, "marker not found on the fetched page, older objects may have been skipped",
					zap.String("marker", cursor.LastID),
					zap.Int("pageSize", len(page)))
			}

			for i := len(batch) - 1; i >= 0; i-- {
				obj := batch[i]
				cursor.LastID = obj.ID()
				opts.Metrics.Delivered(string(opts.ObjectType))
				if !yield(obj, nil) {
					return
				}
			}

			if len(batch) > 0 {
				continue
			}
			if !opts.Blocking {
				return
			}

			if err := opts.Sleep(ctx, opts.Interval); err != nil {
				yield(zero, err)

				return
			}
		}
	}
}

// Unseen returns the prefix of a newest-first page that precedes marker. When
// marker is not on the page the whole page is returned.
func Unseen[T Object](page []T, marker string) []T {
	for i, obj := range page {
		if obj.ID() == marker {
			return page[:i]
		}
	}

	return page
}

func poll[T Object](ctx context.Context, fetcher Fetcher[T], opts Options) ([]T, error) {
	page, err := fetcher.FetchRecent(ctx, opts.ObjectType, opts.Query, opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("could not fetch recent %s objects: %w", opts.ObjectType, err)
	}
	opts.Metrics.Poll(string(opts.ObjectType))
	logger.Debug(ctx, "fetched recent objects", zap.Int("count", len(page)))

	return page, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err() //nolint: wrapcheck
	case <-timer.C:
		return nil
	}
}
