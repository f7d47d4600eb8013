package store

import "context"

// KVStore is the node's entire persistence contract: opaque byte keys to
// opaque byte values, with range scans over a fixed prefix and atomic
// multi-key commits. Every component above this layer that touches storage
// (driver, RPC handlers) does so only through this interface, so a crash
// recovery test can swap in an in-memory fake without touching Postgres.
type KVStore interface {
	// Get returns the value for key, and ok=false if it is unset.
	Get(ctx context.Context, key []byte) (value []byte, ok bool, err error)

	// Put writes a single key/value pair.
	Put(ctx context.Context, key, value []byte) error

	// ScanPrefix returns every (key, value) pair whose key starts with
	// prefix, in ascending key order.
	ScanPrefix(ctx context.Context, prefix []byte) ([]KV, error)

	// BatchPut writes every pair in items atomically: all of them commit,
	// or none do.
	BatchPut(ctx context.Context, items []KV) error

	// Close releases any underlying connection resources.
	Close()
}

// KV is one key/value pair, used for both scan results and batched writes.
type KV struct {
	Key   []byte
	Value []byte
}
