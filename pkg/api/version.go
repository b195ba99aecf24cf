package api

import (
	"context"
	"fmt"
	"mwdb/pkg/serrors"
	"regexp"
	"strconv"
)

var versionRe = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(?:[-.]\w+)?`)

// Version is a major.minor.patch MWDB Core version.
type Version [3]int

// ParseVersion parses versions like "2.10.1" or "2.10.1-rc1"; the suffix is ignored.
func ParseVersion(s string) (Version, error) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("could not parse version %q", s)
	}

	var v Version
	for i := range v {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Version{}, fmt.Errorf("could not parse version %q: %w", s, err)
		}
		v[i] = n
	}

	return v, nil
}

// Compare returns -1, 0 or 1 when v is lower than, equal to or greater than o.
func (v Version) Compare(o Version) int {
	for i := range v {
		switch {
		case v[i] < o[i]:
			return -1
		case v[i] > o[i]:
			return 1
		}
	}

	return 0
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

// ServerMetadata returns the response of the server endpoint. It is fetched
// once and cached for the lifetime of the client.
func (c *Client) ServerMetadata(ctx context.Context) (map[string]any, error) {
	c.mu.RLock()
	meta := c.serverMeta
	c.mu.RUnlock()
	if meta != nil {
		return meta, nil
	}

	if err := c.Get(ctx, "server", &meta, NoAuth()); err != nil {
		return nil, fmt.Errorf("could not get server metadata: %w", err)
	}

	c.mu.Lock()
	c.serverMeta = meta
	c.mu.Unlock()

	return meta, nil
}

// ServerVersion returns the MWDB Core version reported by the server.
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	meta, err := c.ServerMetadata(ctx)
	if err != nil {
		return "", err
	}

	v, ok := meta["server_version"].(string)
	if !ok {
		return "", serrors.With(serrors.ErrBadResponse, "server metadata has no server_version")
	}

	return v, nil
}

// SupportsVersion reports whether the server runs at least the required version.
func (c *Client) SupportsVersion(ctx context.Context, required string) (bool, error) {
	want, err := ParseVersion(required)
	if err != nil {
		return false, err
	}

	raw, err := c.ServerVersion(ctx)
	if err != nil {
		return false, err
	}

	have, err := ParseVersion(raw)
	if err != nil {
		return false, serrors.Wrap(serrors.ErrBadResponse, err, "unexpected server version")
	}

	return have.Compare(want) >= 0, nil
}

// RequireVersion fails with ErrVersionMismatch when the server is older than required.
func (c *Client) RequireVersion(ctx context.Context, required string) error {
	ok, err := c.SupportsVersion(ctx, required)
	if err != nil {
		return err
	}
	if !ok {
		raw, _ := c.ServerVersion(ctx)

		return serrors.With(serrors.ErrVersionMismatch,
			"this feature requires MWDB Core >= %s, server runs %s", required, raw)
	}

	return nil
}
