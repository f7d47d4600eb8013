// Package driver runs the node's single writer loop: per height, strictly
// ordered Grading → Burns → Transactions against the external chain
// adapter and KV store.
package driver

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pegnet/pegfollow/internal/asset"
	"github.com/pegnet/pegfollow/internal/burn"
	"github.com/pegnet/pegfollow/internal/chainadapter"
	"github.com/pegnet/pegfollow/internal/executor"
	"github.com/pegnet/pegfollow/internal/faults"
	"github.com/pegnet/pegfollow/internal/grading"
	"github.com/pegnet/pegfollow/internal/opr"
	"github.com/pegnet/pegfollow/internal/store"
	"github.com/pegnet/pegfollow/internal/tx"
)

// PollInterval is how long the driver sleeps when it has caught up to the
// chain tip before checking again.
const PollInterval = 10 * time.Second

// ProgressNotifier receives the driver's per-height events; the RPC layer's
// websocket hub implements this to push live updates to subscribers. Both
// methods must be non-blocking.
type ProgressNotifier interface {
	BroadcastSyncHead(height uint32)
	BroadcastWinners(height uint32, winnerHashesHex []string)
}

// Driver owns the single per-process writer loop.
type Driver struct {
	Adapter  chainadapter.Adapter
	Store    store.KVStore
	Grader   grading.Grader
	Network  asset.Constants
	Genesis  uint32
	Log      *logrus.Entry
	Notifier ProgressNotifier // optional; may be nil

	kick chan struct{}

	// Progress tracking, safe for concurrent RPC reads.
	currentHeight     atomic.Int64
	tipHeight         atomic.Int64
	running           atomic.Bool
	structuralRejects atomic.Int64
}

// New constructs a Driver. log may be nil, in which case a standard logrus
// entry is used.
func New(adapter chainadapter.Adapter, kv store.KVStore, grader grading.Grader, network asset.Constants, genesis uint32, log *logrus.Entry) *Driver {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Driver{Adapter: adapter, Store: kv, Grader: grader, Network: network, Genesis: genesis, Log: log, kick: make(chan struct{}, 1)}
}

// TriggerResync wakes the driver immediately if it is currently sleeping
// between tip polls, instead of waiting out the rest of PollInterval. A
// pending trigger is coalesced: at most one wakeup is buffered.
func (d *Driver) TriggerResync() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Progress is the driver's current state, exposed read-only to the RPC
// layer and the CLI.
type Progress struct {
	Running           bool  `json:"running"`
	CurrentHeight     int64 `json:"currentHeight"`
	TipHeight         int64 `json:"tipHeight"`
	StructuralRejects int64 `json:"structuralRejects"`
}

// GetProgress returns the driver's current state (thread-safe).
func (d *Driver) GetProgress() Progress {
	return Progress{
		Running:           d.running.Load(),
		CurrentHeight:     d.currentHeight.Load(),
		TipHeight:         d.tipHeight.Load(),
		StructuralRejects: d.structuralRejects.Load(),
	}
}

// Run advances state one height at a time until ctx is cancelled. It
// suspends only while polling for the next block or making network calls
// to the adapter; grading, burn scanning, and transaction execution run
// to completion without yielding.
func (d *Driver) Run(ctx context.Context) error {
	d.running.Store(true)
	defer d.running.Store(false)

	syncHead, err := d.readSyncHead(ctx)
	if err != nil {
		return err
	}
	d.currentHeight.Store(int64(syncHead))

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		tip, err := d.Adapter.TipHeight(ctx)
		if err != nil {
			d.Log.WithError(err).Warn("chain unavailable, retrying")
			if !d.sleepOrDone(ctx, PollInterval) {
				return nil
			}
			continue
		}
		d.tipHeight.Store(int64(tip))

		if int64(tip) <= syncHead {
			if !d.sleepOrDone(ctx, PollInterval) {
				return nil
			}
			continue
		}

		for h := uint32(syncHead + 1); h <= tip; h++ {
			if err := d.runHeight(ctx, h); err != nil {
				if !errors.Is(err, faults.ChainUnavailable) {
					return err
				}
				d.Log.WithError(err).Warn("chain unavailable, retrying")
				if !d.sleepOrDone(ctx, PollInterval) {
					return nil
				}
				break
			}
			syncHead = int64(h)
			d.currentHeight.Store(syncHead)

			select {
			case <-ctx.Done():
				return nil
			default:
			}
		}
	}
}

// sleepOrDone blocks for dur, returning early if ctx is cancelled (false)
// or a resync is manually triggered (true, so the caller re-polls at once).
func (d *Driver) sleepOrDone(ctx context.Context, dur time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-d.kick:
		return true
	case <-time.After(dur):
		return true
	}
}

// heightBatch accumulates every write one call to runHeight produces —
// grading results, reward credits, burn credits, and transaction deltas —
// so the whole height commits as a single store.BatchPut. No sub-write
// from any stage is ever visible to a restart until the entire height
// commits; a crash at any point before commitBatch returns leaves the
// prior height's state exactly as it was, and runHeight(h) simply runs
// again from scratch.
type heightBatch struct {
	items     []store.KV
	deltas    map[string]map[asset.Ticker]int64
	addrOrder []string
}

func newHeightBatch() *heightBatch {
	return &heightBatch{deltas: make(map[string]map[asset.Ticker]int64)}
}

func (b *heightBatch) put(key, value []byte) {
	b.items = append(b.items, store.KV{Key: key, Value: value})
}

// addDelta accumulates a balance change in memory; nothing is visible to a
// reader of the store until commitBatch runs.
func (b *heightBatch) addDelta(address string, ticker asset.Ticker, amount int64) {
	m, ok := b.deltas[address]
	if !ok {
		m = make(map[asset.Ticker]int64)
		b.deltas[address] = m
		b.addrOrder = append(b.addrOrder, address)
	}
	m[ticker] += amount
}

// pendingDelta returns the net in-batch delta accumulated so far for
// (address, ticker), so a later read within the same height sees earlier
// stages' credits/debits even though nothing has committed yet.
func (b *heightBatch) pendingDelta(address string, ticker asset.Ticker) int64 {
	m, ok := b.deltas[address]
	if !ok {
		return 0
	}
	return m[ticker]
}

// runHeight processes a single height: Grading → Burns → Transactions,
// accumulating every write into one heightBatch and committing it with a
// single atomic BatchPut, sync_head included. Either the whole height's
// state (grading result, reward/burn/transaction balance deltas, and
// sync_head) lands, or none of it does — a crash can never leave a
// height partially applied.
func (d *Driver) runHeight(ctx context.Context, h uint32) error {
	log := d.Log.WithField("height", h)

	prevWinners, err := d.loadPrevWinners(ctx)
	if err != nil {
		return err
	}

	batch := newHeightBatch()

	rates, result, err := d.runGrading(ctx, h, prevWinners, batch)
	if err != nil {
		return err
	}
	if result != nil {
		log.Info("graded block")
	}
	if rates == nil {
		rates, err = d.lastKnownRates(ctx)
		if err != nil {
			return err
		}
	}

	if err := d.runBurns(ctx, h, batch); err != nil {
		return err
	}

	if err := d.runTransactions(ctx, h, rates, batch); err != nil {
		return err
	}

	batch.put(store.KeySyncHead(), be32(h))

	if err := d.commitBatch(ctx, batch); err != nil {
		return err
	}

	if d.Notifier != nil {
		d.Notifier.BroadcastSyncHead(h)
		if result != nil {
			hashes := make([]string, len(result.Winners))
			for i, w := range result.Winners {
				hashes[i] = hexEncode(w.EntryHash[:])
			}
			d.Notifier.BroadcastWinners(h, hashes)
		}
	}
	return nil
}

// commitBatch resolves every accumulated balance delta against the
// currently-committed balance (reads are against state unaffected by this
// height, since nothing in batch has committed yet), then writes the whole
// height — grading result, resolved balances, sync_head — in one
// transaction.
func (d *Driver) commitBatch(ctx context.Context, batch *heightBatch) error {
	for _, addr := range batch.addrOrder {
		key := balanceKey(addr)
		raw, _, err := d.Store.Get(ctx, key)
		if err != nil {
			return faults.Wrap(faults.StorageFault, "reading balance", err)
		}
		balances := decodeBalances(raw)
		for ticker, delta := range batch.deltas[addr] {
			balances[ticker] += delta
		}
		encoded, err := json.Marshal(balances)
		if err != nil {
			return faults.Wrap(faults.StorageFault, "encoding balance", err)
		}
		batch.put(key, encoded)
	}

	if err := d.Store.BatchPut(ctx, batch.items); err != nil {
		return faults.Wrap(faults.StorageFault, "committing height", err)
	}
	return nil
}

// logStructuralRejects records n dropped records against the operator
// counter and emits one summary log line per stage per height, rather than
// one line per dropped record.
func (d *Driver) logStructuralRejects(h uint32, stage string, n int) {
	if n == 0 {
		return
	}
	d.structuralRejects.Add(int64(n))
	d.Log.WithFields(logrus.Fields{"height": h, "stage": stage, "count": n}).
		WithError(faults.StructuralReject).
		Warn("dropped structurally invalid records")
}

// runGrading collects OPR candidates for h, runs the grader, and on
// success queues winners/rates/winners_head and reward credits into batch.
// It returns the block's winning rates (nil if the block was ungradable)
// and the grading result itself (nil if ungradable), so the caller can
// broadcast winners only after the batch commits.
func (d *Driver) runGrading(ctx context.Context, h uint32, prevWinners [opr.PrevWindow]string, batch *heightBatch) (tx.RateTable, *grading.Result, error) {
	entries, err := d.Adapter.EntriesAtHeight(ctx, d.Network.OPRChainID, h)
	if err != nil {
		return nil, nil, faults.Wrap(faults.ChainUnavailable, "fetching OPR entries", err)
	}

	var candidates []grading.Record
	var rejected int
	for _, e := range entries {
		parsed, ok := opr.Parse(e.EntryHash, e.ExternalIDs, e.Content)
		if !ok || parsed.Height != int64(h) {
			rejected++
			continue
		}
		candidates = append(candidates, grading.NewRecord(parsed, e.Content))
	}
	d.logStructuralRejects(h, "opr", rejected)

	result, ok := d.Grader.GradeRecords(prevWinners, candidates)
	if !ok {
		return nil, nil, nil
	}

	if err := d.persistGradingResult(h, result, batch); err != nil {
		return nil, nil, err
	}
	return tableFromEstimates(result.WinningRates), &result, nil
}

// persistGradingResult queues the winners blob, rates, winners_head, and
// reward credits into batch. Nothing is written to the store here.
func (d *Driver) persistGradingResult(h uint32, result grading.Result, batch *heightBatch) error {
	winnersBlob := make([]byte, 0, opr.PrevWindow*32)
	for _, w := range result.Winners {
		winnersBlob = append(winnersBlob, w.EntryHash[:]...)
	}

	ratesJSON, err := json.Marshal(result.WinningRates)
	if err != nil {
		return faults.Wrap(faults.StorageFault, "encoding rates", err)
	}

	batch.put(store.KeyWinners(h), winnersBlob)
	batch.put(store.KeyRates(h), ratesJSON)
	batch.put(store.KeyWinnersHead(), be32(h))

	d.creditBlockRewards(result.Winners, batch)
	return nil
}

// creditBlockRewards queues BlockRewards[i] PNT to Winners[i].CoinbaseAddress
// for i in 0..9 as a batch delta.
func (d *Driver) creditBlockRewards(winners []grading.Record, batch *heightBatch) {
	for i, w := range winners {
		if i >= len(asset.BlockRewards) {
			break
		}
		batch.addDelta(w.CoinbaseAddress, asset.PNT, asset.BlockRewards[i])
	}
}

func (d *Driver) runBurns(ctx context.Context, h uint32, batch *heightBatch) error {
	block, err := d.Adapter.FactoidBlock(ctx, h)
	if err != nil {
		return faults.Wrap(faults.ChainUnavailable, "fetching factoid block", err)
	}

	deltas := burn.AggregateRange([][]burn.FactoidTransaction{block.Transactions}, d.Network.BurnAddress)
	for _, delta := range deltas {
		batch.addDelta(delta.Address, burnCreditTicker, delta.Amount)
	}

	batch.put(store.KeyFactoidHead(), be32(h))
	return nil
}

// burnCreditTicker is the denomination burns credit: pegged-FCT.
const burnCreditTicker asset.Ticker = "pFCT"

func (d *Driver) runTransactions(ctx context.Context, h uint32, rates tx.RateTable, batch *heightBatch) error {
	entries, err := d.Adapter.EntriesAtHeight(ctx, d.Network.TransactionsChainID, h)
	if err != nil {
		return faults.Wrap(faults.ChainUnavailable, "fetching transaction entries", err)
	}

	var parsed []*tx.Entry
	var rejected int
	for _, e := range entries {
		entry, err := tx.ParseEntry(e.ExternalIDs, e.Content, d.Network.TransactionsChainID)
		if err != nil {
			rejected++
			continue
		}
		parsed = append(parsed, entry)
	}
	d.logStructuralRejects(h, "transaction", rejected)

	exec := executor.New(batchBalances{d.Store, ctx, batch}, batchBalances{d.Store, ctx, batch})
	applied, err := exec.ApplyEntries(parsed, rates)
	if err != nil {
		return faults.Wrap(faults.StorageFault, "applying transaction entries", err)
	}
	if rejectedEntries := len(parsed) - applied; rejectedEntries > 0 {
		d.logStructuralRejects(h, "overdraw", rejectedEntries)
	}
	return nil
}

// batchBalances adapts a heightBatch (plus the committed store, for the
// pre-height balance floor) into the executor's BalanceReader/Writer
// contract. Reads see every delta queued so far this height; writes queue
// further deltas rather than touching the store.
type batchBalances struct {
	kv    store.KVStore
	ctx   context.Context
	batch *heightBatch
}

func (s batchBalances) GetBalance(address string, ticker asset.Ticker) (int64, error) {
	raw, _, err := s.kv.Get(s.ctx, balanceKey(address))
	if err != nil {
		return 0, err
	}
	return decodeBalances(raw)[ticker] + s.batch.pendingDelta(address, ticker), nil
}

// balanceKey resolves a base58-check address string (pegnet-minted or a
// Factoid-native address credited by a burn) to the store key built from
// its raw 32-byte fingerprint, per the byte-form key convention. An address
// that fails to decode falls back to its raw string bytes rather than
// erroring, since nothing in this package can construct a malformed one.
func balanceKey(addr string) []byte {
	if fp, err := asset.FingerprintBytes(addr); err == nil {
		return store.KeyBalances(fp)
	}
	return store.KeyBalances([]byte(addr))
}

func (s batchBalances) ApplyDeltas(deltas []tx.Delta) error {
	for _, d := range deltas {
		s.batch.addDelta(d.Address, d.Ticker, d.Amount)
	}
	return nil
}

func (d *Driver) loadPrevWinners(ctx context.Context) ([opr.PrevWindow]string, error) {
	var prev [opr.PrevWindow]string
	raw, ok, err := d.Store.Get(ctx, store.KeyWinnersHead())
	if err != nil {
		return prev, faults.Wrap(faults.StorageFault, "reading winners head", err)
	}
	if !ok {
		return prev, nil // genesis: 10 empty strings
	}
	head := binary.BigEndian.Uint32(raw)

	blob, ok, err := d.Store.Get(ctx, store.KeyWinners(head))
	if err != nil {
		return prev, faults.Wrap(faults.StorageFault, "reading winners", err)
	}
	if !ok || len(blob) != opr.PrevWindow*32 {
		return prev, nil
	}
	for i := 0; i < opr.PrevWindow; i++ {
		prev[i] = hexEncode(blob[i*32 : i*32+8])
	}
	return prev, nil
}

func (d *Driver) lastKnownRates(ctx context.Context) (tx.RateTable, error) {
	raw, ok, err := d.Store.Get(ctx, store.KeyWinnersHead())
	if err != nil {
		return nil, faults.Wrap(faults.StorageFault, "reading winners head", err)
	}
	if !ok {
		return tx.RateTable{}, nil
	}
	head := binary.BigEndian.Uint32(raw)

	ratesRaw, ok, err := d.Store.Get(ctx, store.KeyRates(head))
	if err != nil {
		return nil, faults.Wrap(faults.StorageFault, "reading rates", err)
	}
	if !ok {
		return tx.RateTable{}, nil
	}

	var rates tx.RateTable
	if err := json.Unmarshal(ratesRaw, &rates); err != nil {
		return nil, faults.Wrap(faults.StorageFault, "decoding rates", err)
	}
	return rates, nil
}

func (d *Driver) readSyncHead(ctx context.Context) (int64, error) {
	raw, ok, err := d.Store.Get(ctx, store.KeySyncHead())
	if err != nil {
		return 0, faults.Wrap(faults.StorageFault, "reading sync head", err)
	}
	if !ok {
		return int64(d.Genesis) - 1, nil
	}
	return int64(binary.BigEndian.Uint32(raw)), nil
}

func be32(h uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, h)
	return b
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0xF]
	}
	return string(out)
}

func decodeBalances(raw []byte) map[asset.Ticker]int64 {
	balances := make(map[asset.Ticker]int64)
	if len(raw) == 0 {
		return balances
	}
	_ = json.Unmarshal(raw, &balances)
	return balances
}

func tableFromEstimates(estimates opr.AssetEstimates) tx.RateTable {
	rates := make(tx.RateTable, len(estimates))
	for k, v := range estimates {
		rates[k] = v
	}
	return rates
}
