package store

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// MemoryKV is an in-process KVStore used by tests and by pegfollow-node when
// no PostgresDSN is configured; it implements the same atomicity and ordering contract as
// PostgresKV without requiring a database.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryKV constructs an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// Get implements KVStore.
func (m *MemoryKV) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, v...), true, nil
}

// Put implements KVStore.
func (m *MemoryKV) Put(ctx context.Context, key, value []byte) error {
	return m.BatchPut(ctx, []KV{{Key: key, Value: value}})
}

// ScanPrefix implements KVStore.
func (m *MemoryKV) ScanPrefix(_ context.Context, prefix []byte) ([]KV, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []KV
	for k, v := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			out = append(out, KV{Key: []byte(k), Value: append([]byte{}, v...)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Key, out[j].Key) < 0 })
	return out, nil
}

// BatchPut implements KVStore.
func (m *MemoryKV) BatchPut(_ context.Context, items []KV) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		m.data[string(item.Key)] = append([]byte{}, item.Value...)
	}
	return nil
}

// Close is a no-op for MemoryKV.
func (m *MemoryKV) Close() {}
