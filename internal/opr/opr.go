// Package opr parses and validates Oracle Price Records: the per-miner entries
// that report a coinbase address, a reported block height, and an estimate
// for every asset in the closed set.
package opr

import (
	"encoding/json"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/pegnet/pegfollow/internal/asset"
)

// PrevWindow is the fixed length of the prev-winners list every well-formed
// record must carry.
const PrevWindow = 10

// Difficulty is the fixed 8-byte self-reported difficulty value carried in
// external_ids[1], compared as a big-endian unsigned integer. Keeping it as
// a byte array (rather than decoding into a uint64 up front) preserves
// byte-for-byte wire comparison even when a miner submits a malformed or
// short value.
type Difficulty [8]byte

// NewDifficulty fits b into a fixed 8-byte big-endian difficulty value:
// longer input keeps its last 8 bytes, shorter input is left-padded with
// zeros. Reported difficulties are opaque externally-supplied
// bytes; a record whose external_ids[1] is not exactly 8 bytes is rejected
// by Parse before this is ever called on consensus-relevant data.
func NewDifficulty(b []byte) Difficulty {
	var d Difficulty
	if len(b) >= 8 {
		copy(d[:], b[len(b)-8:])
	} else {
		copy(d[8-len(b):], b)
	}
	return d
}

// Cmp returns -1, 0, +1 as d is less than, equal to, or greater than other,
// comparing both as big-endian unsigned 8-byte integers.
func (d Difficulty) Cmp(other Difficulty) int {
	for i := 0; i < 8; i++ {
		if d[i] != other[i] {
			if d[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// AssetEstimates maps every ticker in the closed set to a miner-reported
// floating point estimate.
type AssetEstimates map[asset.Ticker]float64

// OPR is a validated Oracle Price Record, ready to be fed into a grader.
type OPR struct {
	EntryHash               chainhash.Hash
	Nonce                   []byte
	SelfReportedDifficulty  Difficulty
	CoinbaseAddress         string
	Height                  int64
	AssetEstimates          AssetEstimates
	PrevWinners             [PrevWindow]string
	MinerID                 string

	// Grade is populated by a Grader; it is not part of parsing.
	Grade float64
}

// recordContent is the JSON shape of an OPR entry's content payload.
type recordContent struct {
	Coinbase string             `json:"coinbase"`
	Assets   map[string]float64 `json:"assets"`
	DBHT     *float64           `json:"dbht"`
	Winners  []string           `json:"winners"`
	MinerID  *string            `json:"minerid"`
}

// Parse validates a candidate entry against every structural rule an OPR
// must satisfy and returns the decoded record, or ok=false if any rule
// fails. No single failure is distinguished from another: a malformed
// record is simply not a record.
func Parse(entryHash chainhash.Hash, externalIDs [][]byte, content []byte) (OPR, bool) {
	if len(externalIDs) != 2 {
		return OPR{}, false
	}

	var rc recordContent
	if err := json.Unmarshal(content, &rc); err != nil {
		return OPR{}, false
	}

	if !asset.IsValid(rc.Coinbase) {
		return OPR{}, false
	}
	if rc.Assets == nil {
		return OPR{}, false
	}
	if rc.DBHT == nil || *rc.DBHT < 0 || *rc.DBHT != float64(int64(*rc.DBHT)) {
		return OPR{}, false
	}
	if rc.MinerID == nil {
		return OPR{}, false
	}
	if len(rc.Winners) != PrevWindow {
		return OPR{}, false
	}

	if len(rc.Assets) != asset.Count {
		return OPR{}, false
	}
	estimates := make(AssetEstimates, asset.Count)
	for k, v := range rc.Assets {
		t := asset.Ticker(k)
		if !asset.All(t) {
			return OPR{}, false
		}
		if t != asset.PNT && v == 0 {
			return OPR{}, false
		}
		estimates[t] = v
	}
	for _, t := range asset.GradingOrder {
		if _, ok := estimates[t]; !ok {
			return OPR{}, false
		}
	}

	var prevWinners [PrevWindow]string
	copy(prevWinners[:], rc.Winners)

	if len(externalIDs[1]) != 8 {
		return OPR{}, false
	}

	return OPR{
		EntryHash:              entryHash,
		Nonce:                  externalIDs[0],
		SelfReportedDifficulty: NewDifficulty(externalIDs[1]),
		CoinbaseAddress:        rc.Coinbase,
		Height:                 int64(*rc.DBHT),
		AssetEstimates:         estimates,
		PrevWinners:            prevWinners,
		MinerID:                *rc.MinerID,
	}, true
}
