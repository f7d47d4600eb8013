package tx

import (
	"bytes"
	"crypto/sha512"
	"encoding/json"
	"errors"
	"strconv"

	"golang.org/x/crypto/ed25519"

	"github.com/pegnet/pegfollow/internal/asset"
)

// RCDType01 is the reveal-condition-datastructure type byte for a bare
// Ed25519 public key: rcd = 0x01 ‖ pubkey.
const RCDType01 = 0x01

// rcdLen and sigLen are the fixed wire sizes for one signer's RCD and
// detached signature.
const (
	rcdLen = 1 + ed25519.PublicKeySize
	sigLen = ed25519.SignatureSize
)

// ErrMalformedEntry is returned by ParseEntry for any entry whose external
// ID layout, content, or signatures don't satisfy the transaction-entry
// format.
var ErrMalformedEntry = errors.New("tx: malformed transaction entry")

// payload is the canonical on-chain content shape: a single "transactions"
// key holding the ordered transaction list.
type payload struct {
	Transactions []Transaction `json:"transactions"`
}

// Entry is a signed batch of transactions as it appears on-chain: the
// external-id layout (timestamp + RCD/signature pairs) plus the parsed
// transaction list.
type Entry struct {
	Timestamp    string
	Transactions []Transaction
	Signers      []string // addresses derived from each RCD, in external-id order
}

// Signer pairs an Ed25519 private key with nothing else; the corresponding
// RCD and address are derived from the key itself.
type Signer struct {
	PrivateKey ed25519.PrivateKey
}

// BuildEntry serializes txs and signs the resulting content once per
// signer, producing the external IDs and content bytes ready to be
// committed as a chain entry.
func BuildEntry(timestamp string, txs []Transaction, chainID string, signers []Signer) (externalIDs [][]byte, content []byte, err error) {
	content, err = canonicalContent(txs)
	if err != nil {
		return nil, nil, err
	}

	externalIDs = make([][]byte, 0, 1+2*len(signers))
	externalIDs = append(externalIDs, []byte(timestamp))

	for i, s := range signers {
		rcd := make([]byte, 0, rcdLen)
		rcd = append(rcd, RCDType01)
		rcd = append(rcd, s.PrivateKey.Public().(ed25519.PublicKey)...)

		digest := signingDigest(i, timestamp, chainID, content)
		sig := ed25519.Sign(s.PrivateKey, digest)

		externalIDs = append(externalIDs, rcd, sig)
	}

	return externalIDs, content, nil
}

// canonicalContent renders {"transactions":[...]} with Go's default
// compact-on-marshal encoding. encoding/json already emits stable key
// order (struct field declaration order) and no insignificant whitespace
// when not indented, matching the reference separators=(",", ":") form.
func canonicalContent(txs []Transaction) ([]byte, error) {
	if txs == nil {
		txs = []Transaction{}
	}
	return json.Marshal(payload{Transactions: txs})
}

func signingDigest(index int, timestamp, chainID string, content []byte) []byte {
	var msg bytes.Buffer
	msg.WriteString(strconv.Itoa(index))
	msg.WriteString(timestamp)
	msg.WriteString(chainID)
	msg.Write(content)
	sum := sha512.Sum512(msg.Bytes())
	return sum[:]
}

// ParseEntry validates and decodes an on-chain entry. It rejects (returns
// ErrMalformedEntry) on: a wrong external-id count (must be 1 + 2·N, N≥1);
// any RCD/signature of the wrong length; invalid JSON content or a
// non-list "transactions" field; any contained transaction failing
// IsValid; any input address with no corresponding signer; or any
// signature failing to verify against its rebuilt digest. Any one failure
// rejects the whole entry.
func ParseEntry(externalIDs [][]byte, content []byte, chainID string) (*Entry, error) {
	if len(externalIDs) < 3 || len(externalIDs)%2 != 1 {
		return nil, ErrMalformedEntry
	}

	timestamp := string(externalIDs[0])
	pairs := externalIDs[1:]
	n := len(pairs) / 2

	addresses := make([]string, n)
	pubkeys := make([]ed25519.PublicKey, n)
	signerSet := make(map[string]bool, n)

	for i := 0; i < n; i++ {
		rcd := pairs[2*i]
		sig := pairs[2*i+1]
		if len(rcd) != rcdLen || len(sig) != sigLen {
			return nil, ErrMalformedEntry
		}
		pub := ed25519.PublicKey(rcd[1:])
		addr := addressFromPubkey(pub)
		addresses[i] = addr
		pubkeys[i] = pub
		signerSet[addr] = true
	}

	var p payload
	if err := json.Unmarshal(content, &p); err != nil {
		return nil, ErrMalformedEntry
	}
	if p.Transactions == nil {
		return nil, ErrMalformedEntry
	}

	for _, t := range p.Transactions {
		tt := t
		if !tt.IsValid() {
			return nil, ErrMalformedEntry
		}
		if !signerSet[tt.Input.Address] {
			return nil, ErrMalformedEntry
		}
	}

	for i := 0; i < n; i++ {
		sig := pairs[2*i+1]
		digest := signingDigest(i, timestamp, chainID, content)
		if !ed25519.Verify(pubkeys[i], digest, sig) {
			return nil, ErrMalformedEntry
		}
	}

	return &Entry{
		Timestamp:    timestamp,
		Transactions: p.Transactions,
		Signers:      addresses,
	}, nil
}

// GetDeltas merges the deltas of every transaction in the entry, in
// transaction order, returning ok=false if any transaction's inputs fail
// to cover its outputs.
func (e *Entry) GetDeltas(rates RateTable) ([]Delta, bool) {
	total := newDeltaSet()
	for i := range e.Transactions {
		d, ok := e.Transactions[i].GetDeltas(rates)
		if !ok {
			return nil, false
		}
		total.merge(d)
	}
	return total.list(), true
}

// addressFromPubkey derives the address string for an RCD-1 signer: the
// fingerprint is the RCD hash (double-SHA256 of 0x01‖pubkey), not the bare
// public key.
func addressFromPubkey(pub ed25519.PublicKey) string {
	rcd := make([]byte, 0, rcdLen)
	rcd = append(rcd, RCDType01)
	rcd = append(rcd, pub...)
	return asset.AddressFromRCD(rcd).String()
}
