package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
)

// RequestOption customizes a single API request.
type RequestOption func(*request)

type request struct {
	noauth      bool
	params      url.Values
	body        []byte
	contentType string
	err         error
}

// Part is a single field of a multipart/form-data body. Parts with a
// FileName are sent as file uploads.
type Part struct {
	Name        string
	FileName    string
	ContentType string
	Content     []byte
}

// NoAuth sends the request even if the client is not authenticated.
func NoAuth() RequestOption {
	return func(r *request) {
		r.noauth = true
	}
}

// Params adds query string parameters.
func Params(params url.Values) RequestOption {
	return func(r *request) {
		if r.params == nil {
			r.params = url.Values{}
		}
		for k, vs := range params {
			for _, v := range vs {
				r.params.Add(k, v)
			}
		}
	}
}

// JSON sends v encoded as a JSON body.
func JSON(v any) RequestOption {
	return func(r *request) {
		b, err := json.Marshal(v)
		if err != nil {
			r.err = fmt.Errorf("could not marshal request: %w", err)

			return
		}
		r.body = b
		r.contentType = "application/json"
	}
}

// Multipart sends the parts as a multipart/form-data body.
func Multipart(parts ...Part) RequestOption {
	return func(r *request) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for _, p := range parts {
			if err := writePart(w, p); err != nil {
				r.err = fmt.Errorf("could not write multipart field %s: %w", p.Name, err)

				return
			}
		}
		if err := w.Close(); err != nil {
			r.err = fmt.Errorf("could not close multipart body: %w", err)

			return
		}
		r.body = buf.Bytes()
		r.contentType = w.FormDataContentType()
	}
}

func writePart(w *multipart.Writer, p Part) error {
	h := textproto.MIMEHeader{}
	if p.FileName != "" {
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.Name, p.FileName))
		if p.ContentType == "" {
			p.ContentType = "application/octet-stream"
		}
	} else {
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, p.Name))
	}
	if p.ContentType != "" {
		h.Set("Content-Type", p.ContentType)
	}

	pw, err := w.CreatePart(h)
	if err != nil {
		return err //nolint: wrapcheck
	}
	_, err = pw.Write(p.Content)

	return err //nolint: wrapcheck
}
