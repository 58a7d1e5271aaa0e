package storage

import (
	"bytes"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
)

// MemoryStore keeps payloads in a map. It is used by tests and by worlds
// that are never persisted.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[chunk.Pos][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[chunk.Pos][]byte)}
}

func (m *MemoryStore) Load(_ context.Context, pos chunk.Pos) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.chunks[pos]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(data), true, nil
}

func (m *MemoryStore) Save(_ context.Context, pos chunk.Pos, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[pos] = bytes.Clone(data)
	return nil
}

func (m *MemoryStore) List(context.Context) ([]chunk.Pos, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Collect(maps.Keys(m.chunks))
	chunk.SortPos(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

// Corrupt flips a byte of the stored payload for pos. It reports false if
// nothing is stored there.
func (m *MemoryStore) Corrupt(pos chunk.Pos, offset int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.chunks[pos]
	if !ok || offset >= len(data) {
		return false
	}
	data[offset] ^= 0xFF
	return true
}
