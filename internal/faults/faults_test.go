package faults

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_IsMatchesCategoryAndCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(ChainUnavailable, "fetching tip height", cause)

	assert.True(t, errors.Is(err, ChainUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, StorageFault))
	assert.Contains(t, err.Error(), "fetching tip height")
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(StorageFault, "msg", nil))
}
