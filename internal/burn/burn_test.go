package burn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sink = "EC2BURNFCT2PEGNETooo1oooo1oooo1oooo1oooo1oooo19wthin"

func TestIsBurn_Matches(t *testing.T) {
	tx := FactoidTransaction{
		Inputs:    []FactoidInput{{Address: "FA1x", Amount: 1_000_000}},
		Outputs:   nil,
		ECOutputs: []ECOutput{{Address: sink}},
	}
	input, ok := IsBurn(tx, sink)
	assert.True(t, ok)
	assert.Equal(t, int64(1_000_000), input.Amount)
}

func TestIsBurn_WrongInputCount(t *testing.T) {
	tx := FactoidTransaction{
		Inputs:    []FactoidInput{{Address: "FA1x"}, {Address: "FA2x"}},
		ECOutputs: []ECOutput{{Address: sink}},
	}
	_, ok := IsBurn(tx, sink)
	assert.False(t, ok)
}

func TestIsBurn_HasPeggedOutputs(t *testing.T) {
	tx := FactoidTransaction{
		Inputs:    []FactoidInput{{Address: "FA1x", Amount: 100}},
		Outputs:   []string{"FA2x"},
		ECOutputs: []ECOutput{{Address: sink}},
	}
	_, ok := IsBurn(tx, sink)
	assert.False(t, ok)
}

func TestIsBurn_WrongSink(t *testing.T) {
	tx := FactoidTransaction{
		Inputs:    []FactoidInput{{Address: "FA1x", Amount: 100}},
		ECOutputs: []ECOutput{{Address: "EC-someone-else"}},
	}
	_, ok := IsBurn(tx, sink)
	assert.False(t, ok)
}

func TestAggregateRange_SumsAcrossBlocks(t *testing.T) {
	blocks := [][]FactoidTransaction{
		{
			{Inputs: []FactoidInput{{Address: "FA1x", Amount: 100}}, ECOutputs: []ECOutput{{Address: sink}}},
			{Inputs: []FactoidInput{{Address: "FA2x", Amount: 50}}, ECOutputs: []ECOutput{{Address: sink}}},
		},
		{
			{Inputs: []FactoidInput{{Address: "FA1x", Amount: 25}}, ECOutputs: []ECOutput{{Address: sink}}},
		},
	}
	deltas := AggregateRange(blocks, sink)
	totals := map[string]int64{}
	for _, d := range deltas {
		totals[d.Address] = d.Amount
	}
	assert.Equal(t, int64(125), totals["FA1x"])
	assert.Equal(t, int64(50), totals["FA2x"])
}
