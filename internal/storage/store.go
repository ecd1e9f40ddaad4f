// Package storage provides durable store implementations and the scan
// archive. The engine persists everything through the DurableStore port;
// single-key reads and writes are atomic, multi-key operations are not.
package storage

import (
	"context"
	"sync"
)

// Keys used in the durable store. Multi-field state (a saved search's scan
// bookkeeping, the candidate window) is always written as one serialized
// object under one key to avoid partial-update races.
const (
	KeySearches   = "scanner:searches"
	KeySettings   = "scanner:settings"
	KeyCandidates = "scanner:candidates"
	KeyEvents     = "scanner:events"
)

// DurableStore is the key-value persistence port. Implementations guarantee
// atomicity per key but not across keys.
type DurableStore interface {
	// Get returns the stored values for the requested keys. Missing keys are
	// absent from the result map rather than an error.
	Get(ctx context.Context, keys []string) (map[string][]byte, error)

	// Set stores every entry in the map. Each key is written atomically.
	Set(ctx context.Context, entries map[string][]byte) error
}

// MemoryStore is an in-process DurableStore used in tests and as a last
// resort backend. Contents do not survive a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements DurableStore
func (m *MemoryStore) Get(_ context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if value, ok := m.data[key]; ok {
			copied := make([]byte, len(value))
			copy(copied, value)
			result[key] = copied
		}
	}
	return result, nil
}

// Set implements DurableStore
func (m *MemoryStore) Set(_ context.Context, entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, value := range entries {
		copied := make([]byte, len(value))
		copy(copied, value)
		m.data[key] = copied
	}
	return nil
}
