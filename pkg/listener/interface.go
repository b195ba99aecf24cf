// Package listener delivers objects newly uploaded to MWDB by polling the
// most recent page of an object listing and diffing it against a marker: the
// identifier of the last object already delivered.
//
// The marker lives in a caller-owned Cursor. The listener updates it while
// delivering and never persists it; callers that want to resume across process
// restarts save Cursor.LastID themselves.
package listener

import "context"

// ObjectType selects the MWDB listing endpoint used by a Fetcher.
type ObjectType string

const (
	// ObjectTypeAll lists objects of every type.
	ObjectTypeAll ObjectType = "object"
	// ObjectTypeFile lists file samples.
	ObjectTypeFile ObjectType = "file"
	// ObjectTypeConfig lists static/dynamic configurations.
	ObjectTypeConfig ObjectType = "config"
	// ObjectTypeBlob lists text blobs.
	ObjectTypeBlob ObjectType = "blob"
)

// Valid reports whether t is one of the known object types.
func (t ObjectType) Valid() bool {
	switch t {
	case ObjectTypeAll, ObjectTypeFile, ObjectTypeConfig, ObjectTypeBlob:
		return true
	default:
		return false
	}
}

// Object is anything with a stable identifier comparable for equality.
type Object interface {
	ID() string
}

// Fetcher returns the most recent page of objects of the given type.
//
//go:generate mockgen -package mocklistener -source=interface.go -destination=mock/mocklistener.go *
type Fetcher[T Object] interface {
	// FetchRecent returns up to limit objects ordered newest-first. A limit of
	// 0 uses the server default page size. A non-empty query restricts the
	// listing to objects matching the search query. Errors are returned as-is
	// to the listener, which does not retry.
	FetchRecent(ctx context.Context, objectType ObjectType, query string, limit int) ([]T, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc[T Object] func(ctx context.Context, objectType ObjectType, query string, limit int) ([]T, error)

// FetchRecent calls f.
func (f FetcherFunc[T]) FetchRecent(ctx context.Context, objectType ObjectType, query string, limit int) ([]T, error) {
	return f(ctx, objectType, query, limit)
}

// Cursor holds the marker: the identifier of the last delivered object. An
// empty LastID means nothing has been delivered yet, in which case the listener
// starts from whatever is newest and does not replay history.
type Cursor struct {
	LastID string `json:"lastId" yaml:"lastId"`
}
