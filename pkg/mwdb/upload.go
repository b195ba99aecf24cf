package mwdb

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"mwdb/pkg/api"
	"mwdb/pkg/serrors"
	"slices"
)

// UploadOptions are the options shared by every upload.
type UploadOptions struct {
	// Parent is the identifier of the object the upload was derived from.
	Parent string
	// Metakeys are attributes for MWDB Core older than 2.6.0. Exclusive with Attributes.
	Metakeys map[string][]string
	// Attributes are attached to the object. Values may be any JSON value.
	Attributes map[string][]any
	// Tags are added to the object.
	Tags []string
	// KartonID links the upload with an existing Karton analysis.
	KartonID string
	// KartonArguments are passed to a newly spawned Karton analysis.
	KartonArguments map[string]string
	// ShareWith names the group the object is shared with. Exclusive with Private and Public.
	ShareWith string
	// Private shares the object only with the uploader.
	Private bool
	// Public shares the object with everyone.
	Public bool
}

type keyValue struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (c *Client) uploadParams(opts UploadOptions) (map[string]any, error) {
	if len(opts.Metakeys) > 0 && len(opts.Attributes) > 0 {
		return nil, serrors.With(serrors.ErrBadRequest, "attributes and metakeys must be used exclusively")
	}

	exclusive := 0
	for _, set := range []bool{opts.ShareWith != "", opts.Private, opts.Public} {
		if set {
			exclusive++
		}
	}
	if exclusive > 1 {
		return nil, serrors.With(serrors.ErrBadRequest, "share with, private and public are exclusive")
	}

	var uploadAs string
	switch {
	case opts.Public:
		uploadAs = "public"
	case opts.Private:
		uploadAs = c.api.LoggedUser()
	case opts.ShareWith != "":
		uploadAs = opts.ShareWith
	default:
		uploadAs = "*"
	}

	params := map[string]any{
		"parent":    nil,
		"upload_as": uploadAs,
	}
	if opts.Parent != "" {
		params["parent"] = opts.Parent
	}
	if len(opts.Tags) > 0 {
		tags := make([]map[string]string, 0, len(opts.Tags))
		for _, t := range opts.Tags {
			tags = append(tags, map[string]string{"tag": t})
		}
		params["tags"] = tags
	}
	if len(opts.Metakeys) > 0 {
		var list []keyValue
		for _, k := range slices.Sorted(maps.Keys(opts.Metakeys)) {
			for _, v := range opts.Metakeys[k] {
				list = append(list, keyValue{Key: k, Value: v})
			}
		}
		params["metakeys"] = list
	}
	if len(opts.Attributes) > 0 {
		var list []keyValue
		for _, k := range slices.Sorted(maps.Keys(opts.Attributes)) {
			for _, v := range opts.Attributes[k] {
				list = append(list, keyValue{Key: k, Value: v})
			}
		}
		params["attributes"] = list
	}
	if opts.KartonID != "" {
		params["karton_id"] = opts.KartonID
	}
	if len(opts.KartonArguments) > 0 {
		params["karton_arguments"] = opts.KartonArguments
	}

	return params, nil
}

// UploadFile uploads a file sample.
func (c *Client) UploadFile(ctx context.Context, name string, content []byte, opts UploadOptions) (*File, error) {
	params, err := c.uploadParams(opts)
	if err != nil {
		return nil, err
	}
	options, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("could not marshal upload options: %w", err)
	}

	var raw json.RawMessage
	err = c.api.Post(ctx, "file", &raw, api.Multipart(
		api.Part{Name: "file", FileName: name, Content: content},
		api.Part{Name: "options", Content: options},
	))
	if err != nil {
		return nil, fmt.Errorf("could not upload file %s: %w", name, err)
	}

	obj, err := decodeObject(c, KindFile, raw)
	if err != nil {
		return nil, err
	}

	return toFile(obj), nil
}

// UploadConfig uploads a configuration. An empty configType means "static".
func (c *Client) UploadConfig(
	ctx context.Context,
	family string,
	cfg map[string]any,
	configType string,
	opts UploadOptions,
) (*Config, error) {
	params, err := c.uploadParams(opts)
	if err != nil {
		return nil, err
	}
	if configType == "" {
		configType = "static"
	}
	params["family"] = family
	params["cfg"] = cfg
	params["config_type"] = configType

	var raw json.RawMessage
	if err := c.api.Post(ctx, "config", &raw, api.JSON(params)); err != nil {
		return nil, fmt.Errorf("could not upload %s config: %w", family, err)
	}

	obj, err := decodeObject(c, KindConfig, raw)
	if err != nil {
		return nil, err
	}

	return toConfig(obj), nil
}

// UploadBlob uploads a text blob.
func (c *Client) UploadBlob(
	ctx context.Context,
	name, blobType, content string,
	opts UploadOptions,
) (*Blob, error) {
	params, err := c.uploadParams(opts)
	if err != nil {
		return nil, err
	}
	params["blob_name"] = name
	params["blob_type"] = blobType
	params["content"] = content

	var raw json.RawMessage
	if err := c.api.Post(ctx, "blob", &raw, api.JSON(params)); err != nil {
		return nil, fmt.Errorf("could not upload blob %s: %w", name, err)
	}

	obj, err := decodeObject(c, KindBlob, raw)
	if err != nil {
		return nil, err
	}

	return toBlob(obj), nil
}
