// Package chainadapter defines the node's one dependency on the external
// content-addressed chain platform: everything above this package reads
// entries and factoid-layer transactions only through the Adapter
// interface, never by importing a chain client directly.
package chainadapter

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/pegnet/pegfollow/internal/burn"
)

// ChainEntry is one entry of a named chain at a given directory-block
// height, in the order the containing entry block lists it.
type ChainEntry struct {
	EntryHash   chainhash.Hash
	ExternalIDs [][]byte
	Content     []byte
	Timestamp   time.Time
}

// FactoidBlock is the factoid-layer transaction list for one height.
type FactoidBlock struct {
	Transactions []burn.FactoidTransaction
}

// Adapter is every operation the core node needs from the external chain.
// Implementations map any network/transport failure to
// faults.ChainUnavailable.
type Adapter interface {
	// TipHeight returns the chain's current directory-block height.
	TipHeight(ctx context.Context) (uint32, error)

	// EntriesAtHeight returns every entry of chainID whose containing
	// entry block has height h, in block order. An empty, non-error
	// result means the chain had no entry block at that height.
	EntriesAtHeight(ctx context.Context, chainID string, h uint32) ([]ChainEntry, error)

	// FactoidBlock returns the factoid-layer transaction list for height
	// h. ErrBlockNotFound is returned (wrapped) when h exceeds the tip.
	FactoidBlock(ctx context.Context, h uint32) (FactoidBlock, error)

	// FactoidBalance returns the native FCT balance (factoshis) of addr.
	FactoidBalance(ctx context.Context, addr string) (int64, error)
}

// ErrBlockNotFound is returned (wrapped) by FactomAdapter.FactoidBlock
// whenever factomd answers factoid-block-by-height with an error, as it
// does for a height past the tip. The driver does not branch on it; it
// wraps it as faults.ChainUnavailable like any other adapter failure.
var ErrBlockNotFound = blockNotFoundError{}

type blockNotFoundError struct{}

func (blockNotFoundError) Error() string { return "chainadapter: block not found" }
