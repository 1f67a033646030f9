package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionIDRoundTrip(t *testing.T) {
	cases := []TransactionID{
		{Kind: ConditionBlock, Value: 0, Hash: BytesToHash([]byte("a"))},
		{Kind: ConditionBlock, Value: 1<<63 + 7, Hash: BytesToHash([]byte("block-hash"))},
		{Kind: ConditionTime, Value: 1_700_000_000, Hash: BytesToHash([]byte("time-hash"))},
	}

	for _, c := range cases {
		b := c.Bytes()
		require.Len(t, b, TransactionIDLength)

		got, err := ParseTransactionID(b)
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
}

func TestParseTransactionIDRejectsBadLength(t *testing.T) {
	_, err := ParseTransactionID(make([]byte, TransactionIDLength-1))
	assert.Error(t, err)

	_, err = ParseTransactionID(make([]byte, TransactionIDLength+1))
	assert.Error(t, err)
}

func TestAddressHexRoundTrip(t *testing.T) {
	a := BytesToAddress([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20})
	text, err := a.MarshalText()
	require.NoError(t, err)

	var got Address
	require.NoError(t, got.UnmarshalText(text))
	assert.Equal(t, a, got)
}

func TestConditionHelpers(t *testing.T) {
	bc := BlockCondition(42)
	assert.True(t, bc.IsBlock())
	assert.Equal(t, uint64(42), bc.Value)

	tc := TimeCondition(42)
	assert.False(t, tc.IsBlock())
}
