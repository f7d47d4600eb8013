package api

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pegnet/pegfollow/internal/asset"
	"github.com/pegnet/pegfollow/internal/store"
)

func TestDispatcher_GetSyncHead(t *testing.T) {
	kv := store.NewMemoryKV()
	ctx := context.Background()
	require.NoError(t, kv.Put(ctx, store.KeySyncHead(), be32(500)))

	d := &Dispatcher{Store: kv}
	resp := d.Handle(ctx, rpcRequest{Method: "get_sync_head"})
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]any)
	assert.Equal(t, uint32(500), result["height"])
}

func TestDispatcher_GetFactoidHead(t *testing.T) {
	kv := store.NewMemoryKV()
	ctx := context.Background()
	require.NoError(t, kv.Put(ctx, store.KeyFactoidHead(), be32(77)))

	d := &Dispatcher{Store: kv}
	resp := d.Handle(ctx, rpcRequest{Method: "get_factoid_head"})
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]any)
	assert.Equal(t, uint32(77), result["height"])
}

func TestDispatcher_UnknownMethod(t *testing.T) {
	d := &Dispatcher{Store: store.NewMemoryKV()}
	resp := d.Handle(context.Background(), rpcRequest{Method: "get_nonsense"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, errMethodNotFound, resp.Error.Code)
}

func TestDispatcher_GetBalances_InvalidAddress(t *testing.T) {
	d := &Dispatcher{Store: store.NewMemoryKV()}
	params, _ := json.Marshal(addressParams{Address: "not-a-real-address"})
	resp := d.Handle(context.Background(), rpcRequest{Method: "get_balances", Params: params})
	require.NotNil(t, resp.Error)
	assert.Equal(t, errInvalidParams, resp.Error.Code)
}

func TestDispatcher_GetWinners_NotFound(t *testing.T) {
	d := &Dispatcher{Store: store.NewMemoryKV()}
	params, _ := json.Marshal(heightParams{Height: 42})
	resp := d.Handle(context.Background(), rpcRequest{Method: "get_winners", Params: params})
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]any)
	assert.Nil(t, result["winners"])
}

func TestDispatcher_GetRates_Found(t *testing.T) {
	kv := store.NewMemoryKV()
	ctx := context.Background()
	ratesJSON, _ := json.Marshal(map[string]float64{"PNT": 1.0, string(asset.PNT): 1.0})
	require.NoError(t, kv.Put(ctx, store.KeyRates(10), ratesJSON))

	d := &Dispatcher{Store: kv}
	params, _ := json.Marshal(heightParams{Height: 10})
	resp := d.Handle(ctx, rpcRequest{Method: "get_rates", Params: params})
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]any)
	assert.Equal(t, uint32(10), result["height"])
}

func be32(h uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, h)
	return b
}
