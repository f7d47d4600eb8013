package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// schemaSQL is embedded rather than read from disk: the node ships as a
// single binary and must be able to init a fresh database without a
// colocated schema file.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS kv_store (
	bucket TEXT NOT NULL,
	key    BYTEA NOT NULL,
	value  BYTEA NOT NULL,
	PRIMARY KEY (bucket, key)
);
CREATE INDEX IF NOT EXISTS kv_store_bucket_key_idx ON kv_store (bucket, key);
`

// bucket is the single logical namespace pegfollow keys live in. A real
// multi-tenant deployment could shard by network (mainnet/testnet) by
// using a different bucket per PostgresKV instance.
const bucket = "pegfollow"

// PostgresKV implements KVStore over a pgx connection pool, modeling the
// byte-key/byte-value contract as a single (bucket, key, value) table with
// prefix range scans and single-transaction atomic batches.
type PostgresKV struct {
	pool *pgxpool.Pool
	log  *logrus.Entry
}

// ConnectPostgresKV opens a pool against connStr and verifies connectivity.
func ConnectPostgresKV(ctx context.Context, connStr string, log *logrus.Entry) (*PostgresKV, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("store: unable to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("store: ping failed: %w", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log.Info("connected to postgres kv store")
	return &PostgresKV{pool: pool, log: log}, nil
}

// InitSchema creates the kv_store table if it does not already exist.
func (s *PostgresKV) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: failed to init schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresKV) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Get implements KVStore.
func (s *PostgresKV) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_store WHERE bucket = $1 AND key = $2`, bucket, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store: get failed: %w", err)
	}
	return value, true, nil
}

// Put implements KVStore.
func (s *PostgresKV) Put(ctx context.Context, key, value []byte) error {
	return s.BatchPut(ctx, []KV{{Key: key, Value: value}})
}

// ScanPrefix implements KVStore.
func (s *PostgresKV) ScanPrefix(ctx context.Context, prefix []byte) ([]KV, error) {
	upper, unbounded := prefixUpperBound(prefix)

	var rows pgx.Rows
	var err error
	if unbounded {
		rows, err = s.pool.Query(ctx,
			`SELECT key, value FROM kv_store WHERE bucket = $1 AND key >= $2 ORDER BY key`,
			bucket, prefix,
		)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT key, value FROM kv_store WHERE bucket = $1 AND key >= $2 AND key < $3 ORDER BY key`,
			bucket, prefix, upper,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan failed: %w", err)
	}
	defer rows.Close()

	var out []KV
	for rows.Next() {
		var kv KV
		if err := rows.Scan(&kv.Key, &kv.Value); err != nil {
			return nil, fmt.Errorf("store: scan row decode failed: %w", err)
		}
		out = append(out, kv)
	}
	return out, rows.Err()
}

// BatchPut implements KVStore: every pair upserts inside one transaction.
func (s *PostgresKV) BatchPut(ctx context.Context, items []KV) error {
	if len(items) == 0 {
		return nil
	}

	txn, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin failed: %w", err)
	}
	defer func() { _ = txn.Rollback(ctx) }()

	const upsertSQL = `
		INSERT INTO kv_store (bucket, key, value) VALUES ($1, $2, $3)
		ON CONFLICT (bucket, key) DO UPDATE SET value = EXCLUDED.value;
	`
	for _, item := range items {
		if _, err := txn.Exec(ctx, upsertSQL, bucket, item.Key, item.Value); err != nil {
			return fmt.Errorf("store: batch put failed: %w", err)
		}
	}

	return txn.Commit(ctx)
}

// prefixUpperBound computes the smallest key strictly greater than every
// key starting with prefix, by incrementing the last byte that is not
// already 0xFF. unbounded is true when prefix is all 0xFF bytes (or
// empty), meaning no finite upper bound exists and the scan must rely on
// the lower bound alone.
func prefixUpperBound(prefix []byte) (upper []byte, unbounded bool) {
	upper = append([]byte{}, prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xFF {
			upper[i]++
			return upper[:i+1], false
		}
	}
	return nil, true
}
