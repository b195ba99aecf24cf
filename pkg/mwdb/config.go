package mwdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Config is a malware configuration extracted from a sample.
type Config struct {
	*Object
}

// Family returns the malware family.
func (c *Config) Family(ctx context.Context) (string, error) {
	return attr[string](ctx, c.Object, "family")
}

// ConfigType returns "static" or "dynamic".
func (c *Config) ConfigType(ctx context.Context) (string, error) {
	return attr[string](ctx, c.Object, "config_type")
}

// ConfigDict returns the raw configuration. In-blob references are left as
// {"in-blob": "<id>"} values.
func (c *Config) ConfigDict(ctx context.Context) (map[string]any, error) {
	return attr[map[string]any](ctx, c.Object, "cfg")
}

// Config returns the configuration with in-blob references replaced by *Blob
// values.
func (c *Config) Config(ctx context.Context) (map[string]any, error) {
	cfg, err := c.ConfigDict(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		if m, ok := v.(map[string]any); ok {
			if id, ok := m["in-blob"].(string); ok {
				out[k] = &Blob{Object: objectWithID(c.client, KindBlob, id)}

				continue
			}
		}
		out[k] = v
	}

	return out, nil
}

// Content returns the raw configuration as indented JSON.
func (c *Config) Content(ctx context.Context) ([]byte, error) {
	cfg, err := c.ConfigDict(ctx)
	if err != nil {
		return nil, err
	}

	b, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("could not marshal config: %w", err)
	}

	return b, nil
}

// Blob is a text blob, e.g. an injected script or a dumped web inject.
type Blob struct {
	*Object
}

// Name returns the blob name.
func (b *Blob) Name(ctx context.Context) (string, error) {
	return attr[string](ctx, b.Object, "blob_name")
}

// Size returns the blob size in bytes.
func (b *Blob) Size(ctx context.Context) (int64, error) {
	return attr[int64](ctx, b.Object, "blob_size")
}

// BlobType returns the semantic type of the blob.
func (b *Blob) BlobType(ctx context.Context) (string, error) {
	return attr[string](ctx, b.Object, "blob_type")
}

// Content returns the blob contents.
func (b *Blob) Content(ctx context.Context) ([]byte, error) {
	s, err := attr[string](ctx, b.Object, "content")
	if err != nil {
		return nil, err
	}

	return []byte(s), nil
}

// LatestConfig returns the most recent config related to the blob, or nil.
func (b *Blob) LatestConfig(ctx context.Context) (*Config, error) {
	return latestConfig(ctx, b.Object)
}

// LastSeen returns when the blob was last uploaded.
func (b *Blob) LastSeen(ctx context.Context) (time.Time, error) {
	return timeAttr(ctx, b.Object, "last_seen")
}
