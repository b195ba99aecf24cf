package mwdb

import (
	"context"
	"encoding/json"
	"fmt"
	"mwdb/pkg/api"
	"net/url"
	"path"
	"strings"
	"sync"
)

// File is a malware sample.
type File struct {
	*Object

	contentMu sync.Mutex
	content   []byte
}

// MD5 returns the MD5 of the file contents.
func (f *File) MD5(ctx context.Context) (string, error) { return attr[string](ctx, f.Object, "md5") }

// SHA1 returns the SHA1 of the file contents.
func (f *File) SHA1(ctx context.Context) (string, error) { return attr[string](ctx, f.Object, "sha1") }

// SHA512 returns the SHA512 of the file contents.
func (f *File) SHA512(ctx context.Context) (string, error) {
	return attr[string](ctx, f.Object, "sha512")
}

// CRC32 returns the CRC32 of the file contents.
func (f *File) CRC32(ctx context.Context) (string, error) { return attr[string](ctx, f.Object, "crc32") }

// SSDeep returns the ssdeep fuzzy hash of the file contents.
func (f *File) SSDeep(ctx context.Context) (string, error) {
	return attr[string](ctx, f.Object, "ssdeep")
}

// Name returns the original file name.
func (f *File) Name(ctx context.Context) (string, error) {
	return attr[string](ctx, f.Object, "file_name")
}

// Size returns the file size in bytes.
func (f *File) Size(ctx context.Context) (int64, error) {
	return attr[int64](ctx, f.Object, "file_size")
}

// FileType returns the file type as reported by libmagic.
func (f *File) FileType(ctx context.Context) (string, error) {
	return attr[string](ctx, f.Object, "file_type")
}

// LatestConfig returns the most recent config extracted from the file, or nil.
func (f *File) LatestConfig(ctx context.Context) (*Config, error) {
	return latestConfig(ctx, f.Object)
}

// Content returns the file contents, downloading them on first call.
func (f *File) Content(ctx context.Context) ([]byte, error) {
	f.contentMu.Lock()
	defer f.contentMu.Unlock()

	if f.content != nil {
		return f.content, nil
	}

	b, err := f.Download(ctx)
	if err != nil {
		return nil, err
	}
	f.content = b

	return b, nil
}

// Download fetches the file contents. Servers older than 2.2.0 are served
// through the legacy download endpoint; servers older than 2.0.0 are not
// supported.
func (f *File) Download(ctx context.Context) ([]byte, error) {
	client := f.client.api

	ok, err := client.SupportsVersion(ctx, "2.2.0")
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := client.RequireVersion(ctx, "2.0.0"); err != nil {
			return nil, err
		}

		return f.downloadLegacy(ctx)
	}

	endpoint := f.path("download")
	var res struct {
		Token string `json:"token"`
	}
	if err := client.Post(ctx, endpoint, &res); err != nil {
		return nil, fmt.Errorf("could not request download token: %w", err)
	}

	b, err := client.GetRaw(ctx, endpoint, api.Params(url.Values{"token": {res.Token}}))
	if err != nil {
		return nil, fmt.Errorf("could not download file %s: %w", f.id, err)
	}

	return b, nil
}

func (f *File) downloadLegacy(ctx context.Context) ([]byte, error) {
	client := f.client.api

	var res struct {
		URL string `json:"url"`
	}
	if err := client.Post(ctx, "request/sample/"+url.PathEscape(f.id), &res); err != nil {
		return nil, fmt.Errorf("could not request download url: %w", err)
	}

	token := path.Base(strings.TrimRight(res.URL, "/"))
	b, err := client.GetRaw(ctx, "download/"+url.PathEscape(token))
	if err != nil {
		return nil, fmt.Errorf("could not download file %s: %w", f.id, err)
	}

	return b, nil
}

func latestConfig(ctx context.Context, o *Object) (*Config, error) {
	raw, err := attr[json.RawMessage](ctx, o, "latest_config")
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil //nolint: nilnil
	}

	obj, err := decodeObject(o.client, KindConfig, raw)
	if err != nil {
		return nil, err
	}

	return &Config{Object: obj}, nil
}
