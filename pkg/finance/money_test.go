package finance

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountFromFloat(t *testing.T) {
	assert.Equal(t, Amount(100000), AmountFromFloat(1000))
	assert.Equal(t, Amount(100050), AmountFromFloat(1000.50))
	assert.Equal(t, Amount(1), AmountFromFloat(0.01))
}

func TestAmountString(t *testing.T) {
	assert.Equal(t, "1000.00", AmountFromFloat(1000).String())
	assert.Equal(t, "333.34", Amount(33334).String())
	assert.Equal(t, "0.00", Amount(0).String())
}

func TestAmountJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(AmountFromFloat(1000.50))
	require.NoError(t, err)
	assert.Equal(t, "1000.50", string(raw))

	var a Amount
	require.NoError(t, json.Unmarshal([]byte("1000.5"), &a))
	assert.Equal(t, Amount(100050), a)
	require.NoError(t, json.Unmarshal([]byte("1000"), &a))
	assert.Equal(t, Amount(100000), a)

	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &a))
}

func TestSplitEvenExact(t *testing.T) {
	shares := SplitEven(AmountFromFloat(1000), 4)
	require.Len(t, shares, 4)
	for _, s := range shares {
		assert.Equal(t, "250.00", s.String())
	}
	assert.Equal(t, AmountFromFloat(1000), Sum(shares))
}

func TestSplitEvenRemainderOnFinalShare(t *testing.T) {
	shares := SplitEven(AmountFromFloat(1000), 3)
	require.Len(t, shares, 3)
	assert.Equal(t, "333.33", shares[0].String())
	assert.Equal(t, "333.33", shares[1].String())
	assert.Equal(t, "333.34", shares[2].String())
	assert.Equal(t, AmountFromFloat(1000), Sum(shares))
}

func TestSplitEvenSingle(t *testing.T) {
	shares := SplitEven(AmountFromFloat(99.99), 1)
	require.Len(t, shares, 1)
	assert.Equal(t, "99.99", shares[0].String())
}

func TestSplitEvenInvalidParts(t *testing.T) {
	assert.Nil(t, SplitEven(Amount(100), 0))
	assert.Nil(t, SplitEven(Amount(100), -1))
}
