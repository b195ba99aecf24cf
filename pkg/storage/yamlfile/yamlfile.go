// Package yamlfile stores listener markers in a single YAML file.
package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mwdb/pkg/listener"
	"mwdb/pkg/storage"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

// File is a storage.MarkerStorage persisting every marker in one YAML
// document keyed by marker key. Writes replace the file atomically.
type File struct {
	mu   sync.Mutex
	path string
}

// Ensure File implements storage.MarkerStorage at compile time.
var _ storage.MarkerStorage = (*File)(nil)

// New creates a file-backed marker storage. The file and its directory are
// created on the first Save.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the location of the marker file.
func (f *File) Path() string {
	return f.path
}

// Load returns the marker saved under key.
func (f *File) Load(_ context.Context, key string) (listener.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	markers, err := f.readAll()
	if err != nil {
		return listener.Cursor{}, err
	}

	return markers[key], nil
}

// Save stores the marker under key. A corrupted file is never overwritten.
func (f *File) Save(_ context.Context, key string, cursor listener.Cursor) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	markers, err := f.readAll()
	if err != nil {
		return err
	}
	markers[key] = cursor

	b, err := yaml.Marshal(markers)
	if err != nil {
		return fmt.Errorf("could not encode markers: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("could not create marker directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("could not create marker file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint: errcheck

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("could not write marker file: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("could not write marker file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not write marker file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("could not replace marker file: %w", err)
	}

	return nil
}

func (f *File) readAll() (map[string]listener.Cursor, error) {
	markers := map[string]listener.Cursor{}

	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return markers, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read marker file: %w", err)
	}

	if err := yaml.Unmarshal(b, &markers); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", storage.ErrCorrupted, f.path, err)
	}
	if markers == nil {
		markers = map[string]listener.Cursor{}
	}

	return markers, nil
}
