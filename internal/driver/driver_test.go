package driver

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pegnet/pegfollow/internal/asset"
	"github.com/pegnet/pegfollow/internal/burn"
	"github.com/pegnet/pegfollow/internal/chainadapter"
	"github.com/pegnet/pegfollow/internal/grading"
	"github.com/pegnet/pegfollow/internal/opr"
	"github.com/pegnet/pegfollow/internal/store"
)

// fakeAdapter serves a single canned height's worth of OPR entries,
// transaction entries, and an empty factoid block.
type fakeAdapter struct {
	tip          uint32
	oprEntries   map[uint32][]chainadapter.ChainEntry
	factoidBlock map[uint32]chainadapter.FactoidBlock
}

func (f *fakeAdapter) TipHeight(ctx context.Context) (uint32, error) { return f.tip, nil }

func (f *fakeAdapter) EntriesAtHeight(ctx context.Context, chainID string, h uint32) ([]chainadapter.ChainEntry, error) {
	if chainID == asset.Mainnet.OPRChainID {
		return f.oprEntries[h], nil
	}
	return nil, nil
}

func (f *fakeAdapter) FactoidBlock(ctx context.Context, h uint32) (chainadapter.FactoidBlock, error) {
	return f.factoidBlock[h], nil
}

func (f *fakeAdapter) FactoidBalance(ctx context.Context, addr string) (int64, error) { return 0, nil }

type fakeHasher struct{}

func (fakeHasher) Hash(data []byte) []byte {
	out := make([]byte, 8)
	copy(out, data[len(data)-8:])
	return out
}

func buildOPREntry(t *testing.T, minerID string, coinbase string, difficulty uint64, height uint32) chainadapter.ChainEntry {
	t.Helper()

	nonce := make([]byte, 8)
	binary.BigEndian.PutUint64(nonce, difficulty)

	assets := make(map[string]float64, asset.Count)
	for _, tk := range asset.GradingOrder {
		if tk == asset.PNT {
			assets[string(tk)] = 0
			continue
		}
		assets[string(tk)] = 1.0
	}

	content, err := json.Marshal(map[string]any{
		"coinbase": coinbase,
		"assets":   assets,
		"dbht":     height,
		"winners":  make([]string, opr.PrevWindow),
		"minerid":  minerID,
	})
	require.NoError(t, err)

	contentHash := sha256.Sum256(content)
	var entryHash [32]byte
	copy(entryHash[:], contentHash[:])

	return chainadapter.ChainEntry{
		EntryHash:   entryHash,
		ExternalIDs: [][]byte{nonce, nonce},
		Content:     content,
	}
}

func TestDriver_RunHeight_GradesAndRewardsWinners(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()

	var entries []chainadapter.ChainEntry
	for i := 0; i < 15; i++ {
		entries = append(entries, buildOPREntry(t, "miner", asset.Address{byte(i + 1)}.String(), uint64(1000-i), 500))
	}

	adapter := &fakeAdapter{
		tip:          500,
		oprEntries:   map[uint32][]chainadapter.ChainEntry{500: entries},
		factoidBlock: map[uint32]chainadapter.FactoidBlock{500: {}},
	}

	grader := grading.StraightDifficultyGrader{Hasher: fakeHasher{}}
	d := New(adapter, kv, grader, asset.Mainnet, 500, nil)

	err := d.runHeight(ctx, 500)
	require.NoError(t, err)

	syncHead, ok, err := kv.Get(ctx, store.KeySyncHead())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(500), binary.BigEndian.Uint32(syncHead))

	winnersHead, ok, err := kv.Get(ctx, store.KeyWinnersHead())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(500), binary.BigEndian.Uint32(winnersHead))

	// 15 candidates were eligible for StraightDifficultyGrader; the
	// persisted winner set must still be capped at exactly 10 entries.
	winnersBlob, ok, err := kv.Get(ctx, store.KeyWinners(500))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, winnersBlob, 10*32)

	balanceRaw, ok, err := kv.Get(ctx, store.KeyBalances(asset.Address{1}.Bytes()))
	require.NoError(t, err)
	require.True(t, ok)
	var balances map[string]int64
	require.NoError(t, json.Unmarshal(balanceRaw, &balances))
	assert.Equal(t, asset.BlockRewards[0], balances["PNT"])
}

func TestDriver_RunHeight_UngradableBlockStillAdvancesSyncHead(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()

	adapter := &fakeAdapter{
		tip:          10,
		oprEntries:   map[uint32][]chainadapter.ChainEntry{},
		factoidBlock: map[uint32]chainadapter.FactoidBlock{10: {}},
	}

	grader := grading.StraightDifficultyGrader{Hasher: fakeHasher{}}
	d := New(adapter, kv, grader, asset.Mainnet, 10, nil)

	err := d.runHeight(ctx, 10)
	require.NoError(t, err)

	syncHead, ok, err := kv.Get(ctx, store.KeySyncHead())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(10), binary.BigEndian.Uint32(syncHead))

	_, ok, err = kv.Get(ctx, store.KeyWinnersHead())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDriver_RunHeight_CreditsBurns(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()

	burner := asset.Address{9}.String()
	adapter := &fakeAdapter{
		tip:        10,
		oprEntries: map[uint32][]chainadapter.ChainEntry{},
		factoidBlock: map[uint32]chainadapter.FactoidBlock{10: {
			Transactions: []burn.FactoidTransaction{
				{
					Inputs:    []burn.FactoidInput{{Address: burner, Amount: 1_000_000}},
					ECOutputs: []burn.ECOutput{{Address: asset.Mainnet.BurnAddress}},
				},
			},
		}},
	}

	grader := grading.StraightDifficultyGrader{Hasher: fakeHasher{}}
	d := New(adapter, kv, grader, asset.Mainnet, 10, nil)

	err := d.runHeight(ctx, 10)
	require.NoError(t, err)

	raw, ok, err := kv.Get(ctx, store.KeyBalances(asset.Address{9}.Bytes()))
	require.NoError(t, err)
	require.True(t, ok)
	var balances map[string]int64
	require.NoError(t, json.Unmarshal(raw, &balances))
	assert.Equal(t, int64(1_000_000), balances["pFCT"])

	factoidHead, ok, err := kv.Get(ctx, store.KeyFactoidHead())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(10), binary.BigEndian.Uint32(factoidHead))
}

// failingBatchKV wraps a MemoryKV and fails the Nth BatchPut call, to
// exercise that a mid-height failure leaves no partial state behind.
type failingBatchKV struct {
	*store.MemoryKV
	failOn int
	calls  int
}

func (f *failingBatchKV) BatchPut(ctx context.Context, items []store.KV) error {
	f.calls++
	if f.calls == f.failOn {
		return errors.New("simulated storage failure")
	}
	return f.MemoryKV.BatchPut(ctx, items)
}

func TestDriver_RunHeight_FailedCommitLeavesNoPartialState(t *testing.T) {
	ctx := context.Background()
	kv := &failingBatchKV{MemoryKV: store.NewMemoryKV(), failOn: 1}

	winnerAddr := asset.Address{1}.String()
	var entries []chainadapter.ChainEntry
	for i := 0; i < 15; i++ {
		entries = append(entries, buildOPREntry(t, "miner", asset.Address{byte(i + 1)}.String(), uint64(1000-i), 500))
	}

	adapter := &fakeAdapter{
		tip:        500,
		oprEntries: map[uint32][]chainadapter.ChainEntry{500: entries},
		factoidBlock: map[uint32]chainadapter.FactoidBlock{500: {
			Transactions: []burn.FactoidTransaction{
				{
					Inputs:    []burn.FactoidInput{{Address: winnerAddr, Amount: 500}},
					ECOutputs: []burn.ECOutput{{Address: asset.Mainnet.BurnAddress}},
				},
			},
		}},
	}

	grader := grading.StraightDifficultyGrader{Hasher: fakeHasher{}}
	d := New(adapter, kv, grader, asset.Mainnet, 500, nil)

	err := d.runHeight(ctx, 500)
	require.Error(t, err)

	// Neither the reward credit, the burn credit, sync_head, nor
	// winners_head may be visible: the whole height commits in one
	// BatchPut, so a failure there leaves genesis state untouched.
	_, ok, err := kv.Get(ctx, store.KeySyncHead())
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = kv.Get(ctx, store.KeyWinnersHead())
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = kv.Get(ctx, store.KeyFactoidHead())
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = kv.Get(ctx, store.KeyBalances(asset.Address{1}.Bytes()))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDriver_RunHeight_CombinesRewardAndBurnForSameAddress(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()

	var entries []chainadapter.ChainEntry
	for i := 0; i < 15; i++ {
		entries = append(entries, buildOPREntry(t, "miner", asset.Address{byte(i + 1)}.String(), uint64(1000-i), 500))
	}
	winnerAddr := asset.Address{1}.String()

	adapter := &fakeAdapter{
		tip:        500,
		oprEntries: map[uint32][]chainadapter.ChainEntry{500: entries},
		factoidBlock: map[uint32]chainadapter.FactoidBlock{500: {
			Transactions: []burn.FactoidTransaction{
				{
					Inputs:    []burn.FactoidInput{{Address: winnerAddr, Amount: 2_000_000}},
					ECOutputs: []burn.ECOutput{{Address: asset.Mainnet.BurnAddress}},
				},
			},
		}},
	}

	grader := grading.StraightDifficultyGrader{Hasher: fakeHasher{}}
	d := New(adapter, kv, grader, asset.Mainnet, 500, nil)

	err := d.runHeight(ctx, 500)
	require.NoError(t, err)

	raw, ok, err := kv.Get(ctx, store.KeyBalances(asset.Address{1}.Bytes()))
	require.NoError(t, err)
	require.True(t, ok)
	var balances map[string]int64
	require.NoError(t, json.Unmarshal(raw, &balances))
	assert.Equal(t, asset.BlockRewards[0], balances["PNT"])
	assert.Equal(t, int64(2_000_000), balances["pFCT"])
}

func TestDriver_RunHeight_CountsStructuralRejects(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()

	malformed := chainadapter.ChainEntry{
		EntryHash:   buildOPREntry(t, "miner", asset.Address{1}.String(), 1000, 10).EntryHash,
		ExternalIDs: [][]byte{{0x01}}, // wrong shape: OPR entries need 2 external IDs
		Content:     []byte(`{}`),
	}

	adapter := &fakeAdapter{
		tip:          10,
		oprEntries:   map[uint32][]chainadapter.ChainEntry{10: {malformed}},
		factoidBlock: map[uint32]chainadapter.FactoidBlock{10: {}},
	}

	grader := grading.StraightDifficultyGrader{Hasher: fakeHasher{}}
	d := New(adapter, kv, grader, asset.Mainnet, 10, nil)

	err := d.runHeight(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, int64(1), d.GetProgress().StructuralRejects)
}
