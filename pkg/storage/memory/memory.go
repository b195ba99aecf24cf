// Package memory keeps listener markers in memory, for listeners that should
// not resume after a restart and for tests.
package memory

import (
	"context"
	"mwdb/pkg/listener"
	"mwdb/pkg/storage"
	"sync"
)

// Memory is an in-memory storage.MarkerStorage.
type Memory struct {
	mu      sync.RWMutex
	markers map[string]listener.Cursor
}

// Ensure Memory implements storage.MarkerStorage at compile time.
var _ storage.MarkerStorage = (*Memory)(nil)

// New creates an empty in-memory marker storage.
func New() *Memory {
	return &Memory{markers: make(map[string]listener.Cursor)}
}

// Load returns the marker saved under key.
func (m *Memory) Load(_ context.Context, key string) (listener.Cursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.markers[key], nil
}

// Save stores the marker under key.
func (m *Memory) Save(_ context.Context, key string, cursor listener.Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.markers[key] = cursor

	return nil
}
