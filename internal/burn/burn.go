// Package burn scans factoid-layer blocks for the entry-credit-burn pattern
// that mints pegged-FCT balance, independent of the OPR/transaction chains.
package burn

import "github.com/pegnet/pegfollow/internal/asset"

// CreditTicker is the balance denomination a successful burn credits.
// Historically this carried a per-network prefix ("p" on mainnet, "t" on
// testnet); the driver credits burns as "pFCT" on every network, through its
// own burnCreditTicker constant.
type CreditTicker asset.Ticker

// FactoidInput is one spending input of a factoid-layer transaction.
type FactoidInput struct {
	Address string
	Amount  int64 // factoshis
}

// ECOutput is one entry-credit-purchase output of a factoid-layer
// transaction.
type ECOutput struct {
	Address string
}

// FactoidTransaction is the subset of a factoid-block transaction burn
// detection needs: its inputs, pegged-FCT outputs, and EC-purchase outputs.
type FactoidTransaction struct {
	Inputs      []FactoidInput
	Outputs     []string // pegged-output addresses; burns require this to be empty
	ECOutputs   []ECOutput
}

// IsBurn reports whether tx matches the burn pattern: exactly one input,
// zero pegged outputs, exactly one EC output whose address is the
// network's burn sink.
func IsBurn(tx FactoidTransaction, burnSinkAddress string) (FactoidInput, bool) {
	if len(tx.Inputs) != 1 || len(tx.Outputs) != 0 || len(tx.ECOutputs) != 1 {
		return FactoidInput{}, false
	}
	if tx.ECOutputs[0].Address != burnSinkAddress {
		return FactoidInput{}, false
	}
	return tx.Inputs[0], true
}

// Delta is an aggregated per-address burn credit.
type Delta struct {
	Address string
	Amount  int64
}

// deltaAccumulator sums burn credits per address in first-seen order, so a
// range scan produces one deterministic delta list ready for a single
// update_balances pass.
type deltaAccumulator struct {
	order []string
	sums  map[string]int64
}

func newDeltaAccumulator() *deltaAccumulator {
	return &deltaAccumulator{sums: make(map[string]int64)}
}

func (a *deltaAccumulator) add(address string, amount int64) {
	if _, ok := a.sums[address]; !ok {
		a.order = append(a.order, address)
	}
	a.sums[address] += amount
}

func (a *deltaAccumulator) list() []Delta {
	out := make([]Delta, 0, len(a.order))
	for _, addr := range a.order {
		out = append(out, Delta{Address: addr, Amount: a.sums[addr]})
	}
	return out
}

// scanBlock inspects every transaction in a single factoid block and adds
// the burn credits it finds into acc.
func scanBlock(txs []FactoidTransaction, burnSinkAddress string, acc *deltaAccumulator) {
	for _, tx := range txs {
		input, ok := IsBurn(tx, burnSinkAddress)
		if !ok {
			continue
		}
		acc.add(input.Address, input.Amount)
	}
}

// AggregateRange scans every block in blocks, in slice order, and
// returns the aggregated per-address burn deltas for the whole range, the
// way the scanner does: one accumulation pass, one update_balances commit.
func AggregateRange(blocks [][]FactoidTransaction, burnSinkAddress string) []Delta {
	acc := newDeltaAccumulator()
	for _, txs := range blocks {
		scanBlock(txs, burnSinkAddress, acc)
	}
	return acc.list()
}
