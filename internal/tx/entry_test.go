package tx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"

	"github.com/pegnet/pegfollow/internal/asset"
)

const testChainID = "77d4651d899bdff0a8e15515ea49552a530b4657bc198414f555aabcde87e5b"

// rcdAddress mirrors addressFromPubkey for tests that need to predict the
// address a given key will sign as.
func rcdAddress(pub ed25519.PublicKey) string {
	rcd := append([]byte{RCDType01}, pub...)
	return asset.AddressFromRCD(rcd).String()
}

func TestBuildAndParseEntry_RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	inputAddr := rcdAddress(pub)

	txn := Transaction{
		Input:   Input{Address: inputAddr, Type: asset.PNT, Amount: amt(10)},
		Outputs: []Output{{Address: addr(9), Amount: amt(10)}},
	}

	externalIDs, content, err := BuildEntry("1700000000.0", []Transaction{txn}, testChainID, []Signer{{PrivateKey: priv}})
	require.NoError(t, err)
	require.Len(t, externalIDs, 3)

	entry, err := ParseEntry(externalIDs, content, testChainID)
	require.NoError(t, err)
	require.Len(t, entry.Transactions, 1)
	require.Equal(t, inputAddr, entry.Signers[0])
}

func TestParseEntry_WrongExternalIDCount(t *testing.T) {
	_, err := ParseEntry([][]byte{[]byte("ts"), []byte("rcd")}, []byte(`{"transactions":[]}`), testChainID)
	require.Error(t, err)
}

func TestParseEntry_TamperedContentFailsSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	inputAddr := rcdAddress(pub)

	txn := Transaction{
		Input:   Input{Address: inputAddr, Type: asset.PNT, Amount: amt(10)},
		Outputs: []Output{{Address: addr(9), Amount: amt(10)}},
	}
	externalIDs, content, err := BuildEntry("1700000000.0", []Transaction{txn}, testChainID, []Signer{{PrivateKey: priv}})
	require.NoError(t, err)

	// Change the input amount while keeping the content valid JSON, so the
	// entry parses and is rejected by signature verification.
	tampered := bytes.Replace(content, []byte(`"amount":10`), []byte(`"amount":11`), 1)

	_, err = ParseEntry(externalIDs, tampered, testChainID)
	require.Error(t, err)
}

func TestParseEntry_MissingSigner(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	txn := Transaction{
		Input:   Input{Address: addr(42), Type: asset.PNT, Amount: amt(10)},
		Outputs: []Output{{Address: addr(9), Amount: amt(10)}},
	}
	externalIDs, content, err := BuildEntry("1700000000.0", []Transaction{txn}, testChainID, []Signer{{PrivateKey: priv}})
	require.NoError(t, err)

	_, err = ParseEntry(externalIDs, content, testChainID)
	require.Error(t, err)
}
