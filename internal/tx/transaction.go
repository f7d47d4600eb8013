// Package tx implements pegged-asset transaction parsing, validation,
// delta computation, and Ed25519 transaction-entry signing/verification.
package tx

import (
	"github.com/pegnet/pegfollow/internal/asset"
)

// Input is the spending side of a single transaction: an address, the
// asset type being spent, and an optional amount. A nil Amount means
// "spend whatever remains after every output with an explicit amount is
// satisfied" and requires every output to carry its own amount.
type Input struct {
	Address string       `json:"address"`
	Type    asset.Ticker `json:"type"`
	Amount  *int64       `json:"amount,omitempty"`
}

// Output is one receiving leg of a transaction. Type defaults to the
// input's type when omitted (a like-kind transfer); Amount is omitted for
// a "take the remainder" output.
type Output struct {
	Address string        `json:"address"`
	Type    *asset.Ticker `json:"type,omitempty"`
	Amount  *int64        `json:"amount,omitempty"`
}

// Transaction is a single input-to-many-outputs transfer, possibly
// crossing asset types (a conversion).
type Transaction struct {
	Input    Input    `json:"input"`
	Outputs  []Output `json:"outputs"`
	Metadata *string  `json:"metadata,omitempty"`
}

// IsValid enforces the structural rules a transaction must satisfy before
// its deltas can be computed, independent of any balance or rate lookup.
// Checks run in a fixed order so every implementation rejects the same
// first malformed field.
func (t *Transaction) IsValid() bool {
	if !asset.IsValid(t.Input.Address) {
		return false
	}
	if !asset.All(t.Input.Type) {
		return false
	}
	if t.Input.Amount != nil && *t.Input.Amount < 0 {
		return false
	}

	for _, out := range t.Outputs {
		if !asset.IsValid(out.Address) {
			return false
		}
		if out.Type != nil {
			if !asset.All(*out.Type) {
				return false
			}
			if *out.Type != t.Input.Type && out.Address != t.Input.Address {
				return false // conversion must stay at the input address
			}
		}
		if out.Amount == nil {
			if t.Input.Amount == nil {
				return false // underspecified: no way to derive this output's amount
			}
		} else if *out.Amount < 0 {
			return false
		}
	}
	return true
}

// Delta is a signed balance change for one (address, ticker) pair.
type Delta struct {
	Address string
	Ticker  asset.Ticker
	Amount  int64
}

// deltaSet accumulates per-address, per-ticker deltas in first-seen order
// so output is deterministic even though the underlying structure is a map.
type deltaSet struct {
	order []deltaKey
	vals  map[deltaKey]int64
}

type deltaKey struct {
	address string
	ticker  asset.Ticker
}

func newDeltaSet() *deltaSet {
	return &deltaSet{vals: make(map[deltaKey]int64)}
}

func (d *deltaSet) add(address string, ticker asset.Ticker, amount int64) {
	k := deltaKey{address, ticker}
	if _, ok := d.vals[k]; !ok {
		d.order = append(d.order, k)
	}
	d.vals[k] += amount
}

func (d *deltaSet) merge(other *deltaSet) {
	for _, k := range other.order {
		d.add(k.address, k.ticker, other.vals[k])
	}
}

func (d *deltaSet) list() []Delta {
	out := make([]Delta, 0, len(d.order))
	for _, k := range d.order {
		out = append(out, Delta{Address: k.address, Ticker: k.ticker, Amount: d.vals[k]})
	}
	return out
}

// RateTable supplies the block's winning conversion rate for every ticker,
// keyed by ticker.
type RateTable map[asset.Ticker]float64

// GetDeltas computes the balance deltas this transaction produces against
// rates. It returns (nil, false) if the inputs do not cover the outputs
// (outputs with explicit amounts taking more than the input amount).
func (t *Transaction) GetDeltas(rates RateTable) (*deltaSet, bool) {
	deltas := newDeltaSet()

	inputType := t.Input.Type
	var remaining int64
	hasRemaining := t.Input.Amount != nil
	if hasRemaining {
		remaining = *t.Input.Amount
	}

	for _, out := range t.Outputs {
		outType := inputType
		if out.Type != nil {
			outType = *out.Type
		}

		var delta int64
		switch {
		case outType == inputType:
			if out.Amount != nil {
				delta = *out.Amount
			} else {
				delta = remaining
			}
			remaining -= delta
			hasRemaining = true
		case out.Amount == nil:
			delta = truncDiv(remaining, rates[inputType], rates[outType])
			remaining = 0
			hasRemaining = true
		default:
			delta = *out.Amount
			remaining -= truncDiv(delta, rates[outType], rates[inputType])
			hasRemaining = true
		}

		deltas.add(out.Address, outType, delta)
	}

	if hasRemaining && remaining < 0 {
		return nil, false
	}

	spent := int64(0)
	if t.Input.Amount != nil {
		spent = *t.Input.Amount - remaining
	}
	deltas.add(t.Input.Address, t.Input.Type, -spent)

	return deltas, true
}

// truncDiv computes trunc(amount * numRate / denRate) in double precision,
// matching the reference implementation's single floating-point pass.
func truncDiv(amount int64, numRate, denRate float64) int64 {
	return int64(float64(amount) * numRate / denRate)
}
