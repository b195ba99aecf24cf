// Package storage persists listener markers so that a listener resumes where
// it stopped after a restart. Backends keep one marker per key. Backends with
// a job queue can additionally hand delivered objects to background workers
// in the same transaction that advances the marker.
//
//go:generate mockgen -package mockstorage -source=interface.go -destination=mock/mockstorage.go *
package storage

import (
	"context"
	"mwdb/pkg/listener"
	"strings"

	"github.com/riverqueue/river"
)

// MarkerStorage loads and saves listener markers.
type MarkerStorage interface {
	// Load returns the marker saved under key. A key that was never saved
	// yields an empty cursor and no error.
	Load(ctx context.Context, key string) (listener.Cursor, error)
	// Save stores the marker under key, replacing the previous one.
	Save(ctx context.Context, key string, cursor listener.Cursor) error
}

// JobStorage enqueues background jobs.
type JobStorage interface {
	// AddJob enqueues a new job with the given arguments. It is atomic with
	// respect to the surrounding transaction when called on a TxStorage. The
	// returned bool is false when the job was skipped as a duplicate.
	AddJob(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (bool, error)
}

// AllStorage includes every capability of a queue-backed storage.
type AllStorage interface {
	MarkerStorage
	JobStorage
}

// TxStorage is a storage handle bound to a database transaction. It becomes
// unusable after Commit or Rollback.
type TxStorage interface {
	AllStorage

	// Commit persists all changes made through the handle.
	Commit() error
	// Rollback discards all uncommitted changes.
	Rollback() error
}

// Storage is a non-transactional queue-backed storage able to start
// transactions.
type Storage interface {
	AllStorage

	// Close releases the underlying connection pool.
	Close() error

	// Begin starts a new transaction.
	Begin(ctx context.Context) (TxStorage, error)
	// WithTx begins a transaction, invokes cb with it and commits when cb
	// returns nil. Otherwise the transaction is rolled back.
	WithTx(ctx context.Context, cb func(storage AllStorage) error) error
}

// MarkerKey identifies a listener by the server it polls, the listed object
// type and the search query, so that differently filtered listeners sharing
// a storage do not overwrite each other's markers.
func MarkerKey(apiURL string, objectType listener.ObjectType, query string) string {
	key := strings.TrimSuffix(apiURL, "/") + " " + string(objectType)
	if query != "" {
		key += " " + query
	}

	return key
}
