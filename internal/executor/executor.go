// Package executor applies signed transaction entries to account balances
// with atomic, per-entry commit: either every delta in an entry lands, or
// none of them do.
package executor

import (
	"github.com/pegnet/pegfollow/internal/asset"
	"github.com/pegnet/pegfollow/internal/tx"
)

// BalanceReader looks up an address's current balance for one ticker.
type BalanceReader interface {
	GetBalance(address string, ticker asset.Ticker) (int64, error)
}

// BalanceWriter commits a batch of balance deltas atomically: all of them
// apply, or none do.
type BalanceWriter interface {
	ApplyDeltas(deltas []tx.Delta) error
}

// Executor applies parsed, signature-verified entries against a balance
// store, enforcing the non-negative-balance invariant per entry.
type Executor struct {
	Reader BalanceReader
	Writer BalanceWriter
}

// New constructs an Executor over the given balance reader/writer.
func New(reader BalanceReader, writer BalanceWriter) *Executor {
	return &Executor{Reader: reader, Writer: writer}
}

// ApplyEntry computes every transaction's deltas, checks the resulting
// balance of every affected (address, ticker) pair would stay non-negative,
// and only then commits. It returns ok=false (no error, no mutation) if the
// entry's own delta math rejects it (inputs under-covering outputs) or if
// any resulting balance would go negative. A read/write failure against
// the store is returned as an error.
func (e *Executor) ApplyEntry(entry *tx.Entry, rates tx.RateTable) (ok bool, err error) {
	deltas, valid := entry.GetDeltas(rates)
	if !valid {
		return false, nil
	}

	resulting := make([]int64, len(deltas))
	for i, d := range deltas {
		current, readErr := e.Reader.GetBalance(d.Address, d.Ticker)
		if readErr != nil {
			return false, readErr
		}
		resulting[i] = current + d.Amount
		if resulting[i] < 0 {
			return false, nil
		}
	}

	if err := e.Writer.ApplyDeltas(deltas); err != nil {
		return false, err
	}
	return true, nil
}

// ApplyEntries processes entries in order. One entry rejecting (structural
// failure or insufficient balance) does not block later entries from
// committing.
func (e *Executor) ApplyEntries(entries []*tx.Entry, rates tx.RateTable) (applied int, err error) {
	for _, entry := range entries {
		ok, applyErr := e.ApplyEntry(entry, rates)
		if applyErr != nil {
			return applied, applyErr
		}
		if ok {
			applied++
		}
	}
	return applied, nil
}
