package tx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pegnet/pegfollow/internal/asset"
)

func addr(seed byte) string {
	return asset.Address{seed}.String()
}

func amt(v int64) *int64 { return &v }

func tk(t asset.Ticker) *asset.Ticker { return &t }

func TestTransaction_IsValid_LikeKind(t *testing.T) {
	txn := Transaction{
		Input:   Input{Address: addr(1), Type: asset.PNT, Amount: amt(100)},
		Outputs: []Output{{Address: addr(2), Amount: amt(100)}},
	}
	assert.True(t, txn.IsValid())
}

func TestTransaction_IsValid_ConversionMustStayPut(t *testing.T) {
	txn := Transaction{
		Input:   Input{Address: addr(1), Type: asset.PNT, Amount: amt(100)},
		Outputs: []Output{{Address: addr(2), Type: tk("USD"), Amount: amt(50)}},
	}
	assert.False(t, txn.IsValid())

	txn.Outputs[0].Address = addr(1)
	assert.True(t, txn.IsValid())
}

func TestTransaction_IsValid_UnderspecifiedAmount(t *testing.T) {
	txn := Transaction{
		Input:   Input{Address: addr(1), Type: asset.PNT},
		Outputs: []Output{{Address: addr(2)}},
	}
	assert.False(t, txn.IsValid())
}

func TestTransaction_IsValid_BadAddress(t *testing.T) {
	txn := Transaction{
		Input:   Input{Address: "garbage", Type: asset.PNT, Amount: amt(1)},
		Outputs: []Output{{Address: addr(2), Amount: amt(1)}},
	}
	assert.False(t, txn.IsValid())
}

func TestTransaction_GetDeltas_LikeKind(t *testing.T) {
	txn := Transaction{
		Input:   Input{Address: addr(1), Type: asset.PNT, Amount: amt(100)},
		Outputs: []Output{{Address: addr(2), Amount: amt(40)}, {Address: addr(3)}},
	}
	d, ok := txn.GetDeltas(nil)
	require.True(t, ok)
	list := d.list()
	totals := map[string]int64{}
	for _, delta := range list {
		totals[delta.Address] += delta.Amount
	}
	assert.Equal(t, int64(40), totals[addr(2)])
	assert.Equal(t, int64(60), totals[addr(3)])
	assert.Equal(t, int64(-100), totals[addr(1)])
}

func TestTransaction_GetDeltas_ConversionNoAmount(t *testing.T) {
	txn := Transaction{
		Input:   Input{Address: addr(1), Type: "USD", Amount: amt(100)},
		Outputs: []Output{{Address: addr(1), Type: tk("EUR")}},
	}
	rates := RateTable{"USD": 1.0, "EUR": 2.0}
	d, ok := txn.GetDeltas(rates)
	require.True(t, ok)
	list := d.list()
	var eurDelta, usdDelta int64
	for _, delta := range list {
		if delta.Ticker == "EUR" {
			eurDelta = delta.Amount
		}
		if delta.Ticker == "USD" {
			usdDelta = delta.Amount
		}
	}
	assert.Equal(t, int64(50), eurDelta)
	assert.Equal(t, int64(-100), usdDelta)
}

func TestTransaction_GetDeltas_Overdrawn(t *testing.T) {
	txn := Transaction{
		Input: Input{Address: addr(1), Type: "USD", Amount: amt(10)},
		Outputs: []Output{
			{Address: addr(1), Type: tk("EUR"), Amount: amt(6)},
			{Address: addr(1), Type: tk("EUR"), Amount: amt(6)},
		},
	}
	rates := RateTable{"USD": 1.0, "EUR": 1.0}
	_, ok := txn.GetDeltas(rates)
	assert.False(t, ok)
}
