// Package mwdb is a client library for the MWDB malware repository: object
// lookups, searches, uploads and listening for newly uploaded objects.
package mwdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"maps"
	"mwdb/pkg/api"
	"mwdb/pkg/listener"
	"mwdb/pkg/serrors"
	"net/url"
	"strconv"
)

// Client is the high level MWDB client built on top of api.Client.
type Client struct {
	api *api.Client
}

// New wraps an API client.
func New(apiClient *api.Client) *Client {
	return &Client{api: apiClient}
}

// API returns the underlying API client.
func (c *Client) API() *api.Client {
	return c.api
}

// ObjectFromData wraps attributes obtained outside of the client, e.g. from a
// webhook payload or a JSON dump. Missing attributes are loaded lazily.
func (c *Client) ObjectFromData(data map[string]json.RawMessage) *Object {
	return newObject(c, KindObject, maps.Clone(data))
}

// Ensure Client can drive a listener at compile time.
var _ listener.Fetcher[*Object] = (*Client)(nil)

// FetchRecent returns one page of the most recent objects of the given type,
// newest first. It is the listener.Fetcher used by the Listen* methods.
func (c *Client) FetchRecent(
	ctx context.Context,
	objectType listener.ObjectType,
	query string,
	limit int,
) ([]*Object, error) {
	params := url.Values{}
	if query != "" {
		params.Set("query", query)
	}
	if limit > 0 {
		params.Set("count", strconv.Itoa(limit))
	}

	page, err := c.page(ctx, KindOf(objectType), params)
	if errors.Is(err, serrors.ErrNotFound) {
		return nil, nil
	}

	return page, err
}

func (c *Client) page(ctx context.Context, kind Kind, params url.Values) ([]*Object, error) {
	urlType := kind.URLType()

	var res map[string]json.RawMessage
	if err := c.api.Get(ctx, urlType, &res, api.Params(params)); err != nil {
		return nil, fmt.Errorf("could not list %s objects: %w", urlType, err)
	}

	var items []json.RawMessage
	if raw, ok := res[urlType+"s"]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, serrors.Wrap(serrors.ErrBadResponse, err, "unexpected %s listing", urlType)
		}
	}

	out := make([]*Object, 0, len(items))
	for _, item := range items {
		obj, err := decodeObject(c, kind, item)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}

	return out, nil
}

// recent walks a listing newest-first, following older_than until an empty
// page. A not-found response ends the sequence without error.
func (c *Client) recent(ctx context.Context, kind Kind, query string) iter.Seq2[*Object, error] {
	return func(yield func(*Object, error) bool) {
		olderThan := ""
		for {
			params := url.Values{}
			if olderThan != "" {
				params.Set("older_than", olderThan)
			}
			if query != "" {
				params.Set("query", query)
			}

			page, err := c.page(ctx, kind, params)
			if errors.Is(err, serrors.ErrNotFound) {
				return
			}
			if err != nil {
				yield(nil, err)

				return
			}
			if len(page) == 0 {
				return
			}

			for _, obj := range page {
				if !yield(obj, nil) {
					return
				}
			}
			olderThan = page[len(page)-1].ID()
		}
	}
}

func convert[T any](seq iter.Seq2[*Object, error], conv func(*Object) T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for obj, err := range seq {
			var v T
			if obj != nil {
				v = conv(obj)
			}
			if !yield(v, err) {
				return
			}
		}
	}
}

func toFile(o *Object) *File     { return o.fileView() }
func toConfig(o *Object) *Config { return &Config{Object: o} }
func toBlob(o *Object) *Blob     { return &Blob{Object: o} }

// RecentObjects iterates over all objects, newest first.
func (c *Client) RecentObjects(ctx context.Context) iter.Seq2[*Object, error] {
	return c.recent(ctx, KindObject, "")
}

// RecentFiles iterates over files, newest first.
func (c *Client) RecentFiles(ctx context.Context) iter.Seq2[*File, error] {
	return convert(c.recent(ctx, KindFile, ""), toFile)
}

// RecentConfigs iterates over configs, newest first.
func (c *Client) RecentConfigs(ctx context.Context) iter.Seq2[*Config, error] {
	return convert(c.recent(ctx, KindConfig, ""), toConfig)
}

// RecentBlobs iterates over blobs, newest first.
func (c *Client) RecentBlobs(ctx context.Context) iter.Seq2[*Blob, error] {
	return convert(c.recent(ctx, KindBlob, ""), toBlob)
}

// Search iterates over objects matching a Lucene query, newest first.
func (c *Client) Search(ctx context.Context, query string) iter.Seq2[*Object, error] {
	return c.recent(ctx, KindObject, query)
}

// SearchFiles iterates over files matching a Lucene query, newest first.
func (c *Client) SearchFiles(ctx context.Context, query string) iter.Seq2[*File, error] {
	return convert(c.recent(ctx, KindFile, query), toFile)
}

// SearchConfigs iterates over configs matching a Lucene query, newest first.
func (c *Client) SearchConfigs(ctx context.Context, query string) iter.Seq2[*Config, error] {
	return convert(c.recent(ctx, KindConfig, query), toConfig)
}

// SearchBlobs iterates over blobs matching a Lucene query, newest first.
func (c *Client) SearchBlobs(ctx context.Context, query string) iter.Seq2[*Blob, error] {
	return convert(c.recent(ctx, KindBlob, query), toBlob)
}

// SearchOf iterates over objects of the given listing type matching a query,
// newest first. An empty query lists every object.
func (c *Client) SearchOf(ctx context.Context, objectType listener.ObjectType, query string) iter.Seq2[*Object, error] {
	return c.recent(ctx, KindOf(objectType), query)
}

func (c *Client) query(ctx context.Context, kind Kind, hash string) (*Object, error) {
	var raw json.RawMessage
	if err := c.api.Get(ctx, kind.URLType()+"/"+url.PathEscape(hash), &raw); err != nil {
		return nil, fmt.Errorf("could not query %s %s: %w", kind.URLType(), hash, err)
	}

	return decodeObject(c, kind, raw)
}

// Query looks up an object of any kind. Hashes other than SHA256 can only
// identify files and are looked up as such. A missing object is reported as
// serrors.ErrNotFound.
func (c *Client) Query(ctx context.Context, hash string) (*Object, error) {
	if len(hash) != 64 {
		f, err := c.QueryFile(ctx, hash)
		if err != nil {
			return nil, err
		}

		return f.Object, nil
	}

	return c.query(ctx, KindObject, hash)
}

// QueryFile looks up a file by MD5, SHA1, SHA256 or SHA512.
func (c *Client) QueryFile(ctx context.Context, hash string) (*File, error) {
	obj, err := c.query(ctx, KindFile, hash)
	if err != nil {
		return nil, err
	}

	return toFile(obj), nil
}

// QueryConfig looks up a config by its dhash.
func (c *Client) QueryConfig(ctx context.Context, hash string) (*Config, error) {
	obj, err := c.query(ctx, KindConfig, hash)
	if err != nil {
		return nil, err
	}

	return toConfig(obj), nil
}

// QueryBlob looks up a blob by its dhash.
func (c *Client) QueryBlob(ctx context.Context, hash string) (*Blob, error) {
	obj, err := c.query(ctx, KindBlob, hash)
	if err != nil {
		return nil, err
	}

	return toBlob(obj), nil
}

func (c *Client) count(ctx context.Context, kind Kind, query string) (int, error) {
	params := url.Values{}
	if query != "" {
		params.Set("query", query)
	}

	var res struct {
		Count int `json:"count"`
	}
	if err := c.api.Get(ctx, kind.URLType()+"/count", &res, api.Params(params)); err != nil {
		return 0, fmt.Errorf("could not count %s objects: %w", kind.URLType(), err)
	}

	return res.Count, nil
}

// Count returns the number of objects matching a Lucene query; an empty
// query counts everything.
func (c *Client) Count(ctx context.Context, query string) (int, error) {
	return c.count(ctx, KindObject, query)
}

// CountFiles returns the number of files matching a Lucene query.
func (c *Client) CountFiles(ctx context.Context, query string) (int, error) {
	return c.count(ctx, KindFile, query)
}

// CountConfigs returns the number of configs matching a Lucene query.
func (c *Client) CountConfigs(ctx context.Context, query string) (int, error) {
	return c.count(ctx, KindConfig, query)
}

// CountBlobs returns the number of blobs matching a Lucene query.
func (c *Client) CountBlobs(ctx context.Context, query string) (int, error) {
	return c.count(ctx, KindBlob, query)
}

// CountOf returns the number of objects of the given listing type matching a query.
func (c *Client) CountOf(ctx context.Context, objectType listener.ObjectType, query string) (int, error) {
	return c.count(ctx, KindOf(objectType), query)
}

// Listen delivers objects uploaded after cursor.LastID, oldest first, polling
// the listing selected by opts.ObjectType. See listener.Listen.
func (c *Client) Listen(ctx context.Context, cursor *listener.Cursor, opts listener.Options) iter.Seq2[*Object, error] {
	return listener.Listen[*Object](ctx, c, cursor, opts)
}

// ListenFiles delivers newly uploaded files.
func (c *Client) ListenFiles(ctx context.Context, cursor *listener.Cursor, opts listener.Options) iter.Seq2[*File, error] {
	opts.ObjectType = listener.ObjectTypeFile

	return listener.Listen[*File](ctx, typed(c, toFile), cursor, opts)
}

// ListenConfigs delivers newly uploaded configs.
func (c *Client) ListenConfigs(
	ctx context.Context,
	cursor *listener.Cursor,
	opts listener.Options,
) iter.Seq2[*Config, error] {
	opts.ObjectType = listener.ObjectTypeConfig

	return listener.Listen[*Config](ctx, typed(c, toConfig), cursor, opts)
}

// ListenBlobs delivers newly uploaded blobs.
func (c *Client) ListenBlobs(ctx context.Context, cursor *listener.Cursor, opts listener.Options) iter.Seq2[*Blob, error] {
	opts.ObjectType = listener.ObjectTypeBlob

	return listener.Listen[*Blob](ctx, typed(c, toBlob), cursor, opts)
}

func typed[T listener.Object](c *Client, conv func(*Object) T) listener.Fetcher[T] {
	return listener.FetcherFunc[T](func(
		ctx context.Context,
		objectType listener.ObjectType,
		query string,
		limit int,
	) ([]T, error) {
		page, err := c.FetchRecent(ctx, objectType, query, limit)
		if err != nil {
			return nil, err
		}

		out := make([]T, 0, len(page))
		for _, obj := range page {
			out = append(out, conv(obj))
		}

		return out, nil
	})
}
