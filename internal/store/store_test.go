package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys_FixedLayout(t *testing.T) {
	assert.Equal(t, []byte("SyncHead"), KeySyncHead())
	assert.Equal(t, []byte("WinnersHead"), KeyWinnersHead())
	assert.Equal(t, []byte("FactoidHead"), KeyFactoidHead())
	assert.Equal(t, append([]byte("Winners"), 0, 0, 1, 0), KeyWinners(256))
	assert.Equal(t, append([]byte("Rates"), 0, 0, 0, 7), KeyRates(7))
	assert.Equal(t, append([]byte("Balances"), 0xAB), KeyBalances([]byte{0xAB}))
}

func TestPrefixUpperBound(t *testing.T) {
	upper, unbounded := prefixUpperBound([]byte("Winners"))
	require.False(t, unbounded)
	assert.Equal(t, []byte("Winnert"), upper)

	_, unbounded = prefixUpperBound([]byte{0xFF, 0xFF})
	assert.True(t, unbounded)
}

func TestMemoryKV_PutGetScan(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	require.NoError(t, kv.Put(ctx, KeyRates(1), []byte(`{"PNT":1.0}`)))
	require.NoError(t, kv.Put(ctx, KeyRates(2), []byte(`{"PNT":2.0}`)))
	require.NoError(t, kv.Put(ctx, KeySyncHead(), []byte{0, 0, 0, 2}))

	v, ok, err := kv.Get(ctx, KeyRates(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"PNT":1.0}`, string(v))

	results, err := kv.ScanPrefix(ctx, prefixRates)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMemoryKV_BatchPutAtomicOrdering(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	err := kv.BatchPut(ctx, []KV{
		{Key: KeyBalances([]byte{1}), Value: []byte("a")},
		{Key: KeyBalances([]byte{2}), Value: []byte("b")},
	})
	require.NoError(t, err)

	results, err := kv.ScanPrefix(ctx, prefixBalances)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
