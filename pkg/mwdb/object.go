package mwdb

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"mwdb/pkg/api"
	"mwdb/pkg/listener"
	"mwdb/pkg/serrors"
	"net/url"
	"sync"
	"time"
)

// Kind is the value of the "type" field of an MWDB object.
type Kind string

const (
	// KindObject is used for objects whose concrete type is not known yet.
	KindObject Kind = "object"
	// KindFile is a file sample.
	KindFile Kind = "file"
	// KindConfig is a malware configuration.
	KindConfig Kind = "static_config"
	// KindBlob is a text blob.
	KindBlob Kind = "text_blob"
)

// URLType returns the endpoint prefix used for objects of this kind.
func (k Kind) URLType() string {
	switch k {
	case KindFile:
		return "file"
	case KindConfig:
		return "config"
	case KindBlob:
		return "blob"
	default:
		return "object"
	}
}

// KindOf maps a listing object type onto the kind of objects it returns.
func KindOf(t listener.ObjectType) Kind {
	switch t {
	case listener.ObjectTypeFile:
		return KindFile
	case listener.ObjectTypeConfig:
		return KindConfig
	case listener.ObjectTypeBlob:
		return KindBlob
	default:
		return KindObject
	}
}

// Object is an MWDB object of any kind. Attributes missing from the listing
// that produced the object are loaded lazily from the API on first access and
// cached until Flush. Objects are safe for concurrent use.
type Object struct {
	client *Client
	id     string
	kind   Kind

	mu   sync.Mutex
	data map[string]json.RawMessage
	file *File
}

func newObject(c *Client, kind Kind, data map[string]json.RawMessage) *Object {
	if data == nil {
		data = map[string]json.RawMessage{}
	}

	o := &Object{client: c, kind: kind, data: data}
	_ = json.Unmarshal(data["id"], &o.id)
	if o.kind == "" || o.kind == KindObject {
		var t string
		if err := json.Unmarshal(data["type"], &t); err == nil && t != "" {
			o.kind = Kind(t)
		}
	}
	if o.kind == "" {
		o.kind = KindObject
	}

	return o
}

func objectWithID(c *Client, kind Kind, id string) *Object {
	raw, _ := json.Marshal(id)

	return newObject(c, kind, map[string]json.RawMessage{"id": raw})
}

func decodeObject(c *Client, kind Kind, raw json.RawMessage) (*Object, error) {
	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, serrors.Wrap(serrors.ErrBadResponse, err, "unexpected object representation")
	}

	return newObject(c, kind, data), nil
}

// ID returns the object identifier: the SHA256 of a file or the dhash of a
// config or blob.
func (o *Object) ID() string {
	return o.id
}

// SHA256 is an alias of ID.
func (o *Object) SHA256() string {
	return o.id
}

// Kind returns the object kind.
func (o *Object) Kind() Kind {
	return o.kind
}

// AsFile returns the object as a file, if it is one.
func (o *Object) AsFile() (*File, bool) {
	if o.kind != KindFile {
		return nil, false
	}

	return o.fileView(), true
}

// fileView returns the File sharing this object, so that downloaded contents
// are cached once per object.
func (o *Object) fileView() *File {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.file == nil {
		o.file = &File{Object: o}
	}

	return o.file
}

// AsConfig returns the object as a config, if it is one.
func (o *Object) AsConfig() (*Config, bool) {
	if o.kind != KindConfig {
		return nil, false
	}

	return &Config{Object: o}, true
}

// AsBlob returns the object as a blob, if it is one.
func (o *Object) AsBlob() (*Blob, bool) {
	if o.kind != KindBlob {
		return nil, false
	}

	return &Blob{Object: o}, true
}

// Data returns a copy of the attributes loaded so far.
func (o *Object) Data() map[string]json.RawMessage {
	o.mu.Lock()
	defer o.mu.Unlock()

	return maps.Clone(o.data)
}

// Content returns the contents of a file, the indented JSON of a config or
// the text of a blob. Other kinds have no content.
func (o *Object) Content(ctx context.Context) ([]byte, error) {
	switch o.kind {
	case KindFile:
		return o.fileView().Content(ctx)
	case KindConfig:
		return (&Config{Object: o}).Content(ctx)
	case KindBlob:
		return (&Blob{Object: o}).Content(ctx)
	default:
		return nil, serrors.With(serrors.ErrBadRequest, "%s object %s has no content", o.kind, o.id)
	}
}

// Load fetches all object attributes, replacing cached ones.
func (o *Object) Load(ctx context.Context) error {
	return o.load(ctx, o.path(), "")
}

// Flush drops every cached attribute except the identifier, so the next
// access reloads it from the API.
func (o *Object) Flush() {
	o.mu.Lock()
	defer o.mu.Unlock()

	raw, _ := json.Marshal(o.id)
	o.data = map[string]json.RawMessage{"id": raw}
}

func (o *Object) path(segments ...string) string {
	p := o.kind.URLType() + "/" + url.PathEscape(o.id)
	for _, s := range segments {
		p += "/" + s
	}

	return p
}

func (o *Object) objectPath(segments ...string) string {
	p := "object/" + url.PathEscape(o.id)
	for _, s := range segments {
		p += "/" + s
	}

	return p
}

func (o *Object) cached(key string) (json.RawMessage, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	v, ok := o.data[key]

	return v, ok
}

func (o *Object) expire(keys ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, k := range keys {
		delete(o.data, k)
	}
}

// load merges the response of path into the cached attributes. When key is
// set the whole response is stored under key instead.
func (o *Object) load(ctx context.Context, path, key string) error {
	var raw json.RawMessage
	if err := o.client.api.Get(ctx, path, &raw); err != nil {
		return fmt.Errorf("could not load %s: %w", path, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if key != "" {
		o.data[key] = raw

		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return serrors.Wrap(serrors.ErrBadResponse, err, "unexpected response from %s", path)
	}
	maps.Copy(o.data, fields)

	return nil
}

func (o *Object) lookup(ctx context.Context, key, path string, wrap bool) (json.RawMessage, error) {
	if v, ok := o.cached(key); ok {
		return v, nil
	}

	storeAs := ""
	if wrap {
		storeAs = key
	}
	if err := o.load(ctx, path, storeAs); err != nil {
		return nil, err
	}
	if v, ok := o.cached(key); ok {
		return v, nil
	}

	return nil, serrors.With(serrors.ErrBadResponse, "%s %s has no %q attribute", o.kind, o.id, key)
}

// attr returns an attribute loaded from the object's own endpoint.
func attr[T any](ctx context.Context, o *Object, key string) (T, error) {
	return attrFrom[T](ctx, o, key, o.path(), false)
}

func attrFrom[T any](ctx context.Context, o *Object, key, path string, wrap bool) (T, error) {
	var out T
	raw, err := o.lookup(ctx, key, path, wrap)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, serrors.Wrap(serrors.ErrBadResponse, err, "unexpected %q attribute", key)
	}

	return out, nil
}

// Tags returns the object tags.
func (o *Object) Tags(ctx context.Context) ([]string, error) {
	tags, err := attrFrom[[]struct {
		Tag string `json:"tag"`
	}](ctx, o, "tags", o.objectPath("tag"), true)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Tag)
	}

	return out, nil
}

// Comments returns the object comments.
func (o *Object) Comments(ctx context.Context) ([]*Comment, error) {
	comments, err := attrFrom[[]*Comment](ctx, o, "comments", o.objectPath("comment"), true)
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		c.object = o
	}

	return comments, nil
}

// Shares returns the groups the object is shared with and why.
func (o *Object) Shares(ctx context.Context) ([]*Share, error) {
	shares, err := attrFrom[[]*Share](ctx, o, "shares", o.objectPath("share"), false)
	if err != nil {
		return nil, err
	}
	for _, s := range shares {
		s.object = o
		s.Reason.client = o.client
	}

	return shares, nil
}

// Metakeys returns the object attributes grouped by key.
func (o *Object) Metakeys(ctx context.Context) (map[string][]string, error) {
	metakeys, err := attrFrom[[]struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}](ctx, o, "metakeys", o.objectPath("meta"), false)
	if err != nil {
		return nil, err
	}

	out := map[string][]string{}
	for _, m := range metakeys {
		v, ok := m.Value.(string)
		if !ok {
			b, _ := json.Marshal(m.Value)
			v = string(b)
		}
		out[m.Key] = append(out[m.Key], v)
	}

	return out, nil
}

// UploadTime returns when the object was first uploaded.
func (o *Object) UploadTime(ctx context.Context) (time.Time, error) {
	return timeAttr(ctx, o, "upload_time")
}

// Parents returns the objects this object was derived from.
func (o *Object) Parents(ctx context.Context) ([]*Object, error) {
	return o.related(ctx, "parents")
}

// Children returns the objects derived from this object.
func (o *Object) Children(ctx context.Context) ([]*Object, error) {
	return o.related(ctx, "children")
}

func (o *Object) related(ctx context.Context, key string) ([]*Object, error) {
	items, err := attr[[]json.RawMessage](ctx, o, key)
	if err != nil {
		return nil, err
	}

	out := make([]*Object, 0, len(items))
	for _, item := range items {
		obj, err := decodeObject(o.client, KindObject, item)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}

	return out, nil
}

// AddChild marks the object identified by childID as derived from this one.
func (o *Object) AddChild(ctx context.Context, childID string) error {
	if err := o.client.api.Put(ctx, o.objectPath("child", url.PathEscape(childID)), nil); err != nil {
		return fmt.Errorf("could not add child %s: %w", childID, err)
	}
	o.expire("children")

	return nil
}

// AddTag tags the object.
func (o *Object) AddTag(ctx context.Context, tag string) error {
	if err := o.client.api.Put(ctx, o.objectPath("tag"), nil, api.JSON(map[string]string{"tag": tag})); err != nil {
		return fmt.Errorf("could not add tag %s: %w", tag, err)
	}
	o.expire("tags")

	return nil
}

// RemoveTag untags the object.
func (o *Object) RemoveTag(ctx context.Context, tag string) error {
	if err := o.client.api.Delete(ctx, o.objectPath("tag"), nil, api.Params(url.Values{"tag": {tag}})); err != nil {
		return fmt.Errorf("could not remove tag %s: %w", tag, err)
	}
	o.expire("tags")

	return nil
}

// AddComment comments the object.
func (o *Object) AddComment(ctx context.Context, comment string) error {
	if err := o.client.api.Post(ctx, o.objectPath("comment"), nil,
		api.JSON(map[string]string{"comment": comment})); err != nil {
		return fmt.Errorf("could not add comment: %w", err)
	}
	o.expire("comments")

	return nil
}

// AddMetakey adds an attribute to the object.
func (o *Object) AddMetakey(ctx context.Context, key, value string) error {
	if err := o.client.api.Post(ctx, o.objectPath("meta"), nil,
		api.JSON(map[string]string{"key": key, "value": value})); err != nil {
		return fmt.Errorf("could not add metakey %s: %w", key, err)
	}
	o.expire("metakeys")

	return nil
}

// ShareWith shares the object with a group.
func (o *Object) ShareWith(ctx context.Context, group string) error {
	if err := o.client.api.Put(ctx, o.objectPath("share"), nil,
		api.JSON(map[string]string{"group": group})); err != nil {
		return fmt.Errorf("could not share with %s: %w", group, err)
	}
	o.expire("shares")

	return nil
}

func timeAttr(ctx context.Context, o *Object, key string) (time.Time, error) {
	s, err := attr[string](ctx, o, key)
	if err != nil {
		return time.Time{}, err
	}

	return parseTime(s)
}

var timeLayouts = []string{ //nolint: gochecknoglobals
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// parseTime accepts the ISO 8601 timestamps emitted by MWDB, with or without
// a zone offset. Timestamps without an offset are UTC.
func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, serrors.With(serrors.ErrBadResponse, "unexpected timestamp %q", s)
}
