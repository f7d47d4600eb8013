// Package store defines the node's byte-key/byte-value persistence
// contract and a PostgreSQL-backed implementation of it.
package store

import "encoding/binary"

// Fixed key prefixes. Heights are appended as a 4-byte big-endian unsigned
// integer; addresses are appended as their raw fingerprint bytes.
var (
	keySyncHead    = []byte("SyncHead")
	keyWinnersHead = []byte("WinnersHead")
	keyFactoidHead = []byte("FactoidHead")
	prefixWinners  = []byte("Winners")
	prefixRates    = []byte("Rates")
	prefixBalances = []byte("Balances")
)

// be32 encodes height as a 4-byte big-endian unsigned integer.
func be32(height uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, height)
	return b
}

// KeySyncHead is the fixed key holding the last fully-applied height.
func KeySyncHead() []byte { return append([]byte{}, keySyncHead...) }

// KeyWinnersHead is the fixed key holding the height of the most recent
// graded block.
func KeyWinnersHead() []byte { return append([]byte{}, keyWinnersHead...) }

// KeyFactoidHead is the fixed key holding the last height the burn scanner
// has fully scanned, tracked independently of SyncHead so an operator can
// tell the two passes apart when diagnosing a stuck node.
func KeyFactoidHead() []byte { return append([]byte{}, keyFactoidHead...) }

// KeyWinners builds the "Winners" ‖ BE32(height) key.
func KeyWinners(height uint32) []byte {
	return append(append([]byte{}, prefixWinners...), be32(height)...)
}

// KeyRates builds the "Rates" ‖ BE32(height) key.
func KeyRates(height uint32) []byte {
	return append(append([]byte{}, prefixRates...), be32(height)...)
}

// KeyBalances builds the "Balances" ‖ address key.
func KeyBalances(addressBytes []byte) []byte {
	return append(append([]byte{}, prefixBalances...), addressBytes...)
}
