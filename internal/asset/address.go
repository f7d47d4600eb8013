package asset

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/FactomProject/btcutil/base58"
)

// Address is the 32-byte content-derived fingerprint (RCD hash) that
// identifies a pegnet account. Internal keys always use this byte form;
// Address.String renders the human-readable base58-check encoding.
type Address [32]byte

// addressPrefix is the 2-byte version prefix pegnet pegged-asset addresses
// are encoded with (mirrors the Factoid-address scheme: prefix ‖ rcd_hash ‖
// checksum[:4]).
var addressPrefix = [2]byte{0x5f, 0xb1}

// ErrInvalidAddress is returned by ParseAddress for any malformed or
// checksum-failing input.
var ErrInvalidAddress = errors.New("asset: invalid address")

// ParseAddress decodes a human-readable base58-check address string into
// its raw 32-byte form.
func ParseAddress(s string) (Address, error) {
	raw := base58.Decode(s)
	if len(raw) != 2+32+4 {
		return Address{}, ErrInvalidAddress
	}
	payload := raw[:len(raw)-4]
	checksum := raw[len(raw)-4:]
	if !validChecksum(payload, checksum) {
		return Address{}, ErrInvalidAddress
	}
	var a Address
	copy(a[:], payload[2:])
	return a, nil
}

// String renders the base58-check human-readable form of the address.
func (a Address) String() string {
	payload := make([]byte, 0, 2+32)
	payload = append(payload, addressPrefix[:]...)
	payload = append(payload, a[:]...)
	sum := checksum(payload)
	full := append(payload, sum...)
	return base58.Encode(full)
}

// Hex renders the raw 32-byte fingerprint as lowercase hex, used for KV keys
// and log fields where base58 would be noisy.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// Bytes returns the raw 32-byte fingerprint, the form store keys are built
// from.
func (a Address) Bytes() []byte {
	return a[:]
}

// AddressFromRCD derives the 32-byte fingerprint for a reveal-condition
// datastructure by double-hashing it with SHA-256, the same rcd_hash scheme
// the checksum above mirrors. rcd is 0x01 ‖ pubkey for an RCD-1 signer.
func AddressFromRCD(rcd []byte) Address {
	h1 := sha256.Sum256(rcd)
	h2 := sha256.Sum256(h1[:])
	var a Address
	copy(a[:], h2[:])
	return a
}

// FingerprintBytes extracts the raw 32-byte payload from any address string
// sharing pegnet's prefix ‖ fingerprint ‖ checksum layout, without
// requiring the 2-byte prefix to be pegnet's own: Factom/Factoid-native
// addresses (FA..., EC...) credited by burns use the same base58-check
// shape with a different prefix. Used to turn any address string into the
// byte form store keys use.
func FingerprintBytes(s string) ([]byte, error) {
	raw := base58.Decode(s)
	if len(raw) != 2+32+4 {
		return nil, ErrInvalidAddress
	}
	payload := raw[:len(raw)-4]
	want := raw[len(raw)-4:]
	if !validChecksum(payload, want) {
		return nil, ErrInvalidAddress
	}
	return payload[2:], nil
}

func checksum(payload []byte) []byte {
	h1 := sha256.Sum256(payload)
	h2 := sha256.Sum256(h1[:])
	return h2[:4]
}

func validChecksum(payload, want []byte) bool {
	got := checksum(payload)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// IsValid reports whether s parses as a well-formed address.
func IsValid(s string) bool {
	_, err := ParseAddress(s)
	return err == nil
}
