package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRHDeterministic(t *testing.T) {
	a := CRH([]byte("hello"))
	b := CRH([]byte("hello"))
	c := CRH([]byte("hello!"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestLeadingZerosAndTarget(t *testing.T) {
	var zero [DigestSize]byte
	assert.Equal(t, uint64(MaxDifficultyBits), LeadingZeros(zero))

	digest := zero
	digest[0] = 0x01
	assert.Equal(t, uint64(7), LeadingZeros(digest))

	target, err := Target(12)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), LeadingZeros(target))

	_, err = Target(MaxDifficultyBits + 1)
	assert.Error(t, err)
}

func TestRiemannZeta2(t *testing.T) {
	_, err := RiemannZeta2(0)
	assert.Error(t, err)

	z1, err := RiemannZeta2(1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, z1, 1e-9)

	z2, err := RiemannZeta2(2)
	require.NoError(t, err)
	assert.InDelta(t, 1.25, z2, 1e-9)
}

func TestDifficultyMonotonic(t *testing.T) {
	assert.Equal(t, uint16(0), Difficulty(0))

	prev := uint16(0)
	for _, d := range []uint64{1, 10, 100, 1000, 1_000_000} {
		cur := Difficulty(d)
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

// TestCoinbaseAmountTable is P10: the coinbase amount table must match
// bit-for-bit across implementations.
func TestCoinbaseAmountTable(t *testing.T) {
	cases := []struct {
		distance   uint64
		difficulty uint16
		want       uint64
	}{
		{1, 1, 1_000_000_000},
		{1, 255, 609_377_028},
		{1, 512, 608_649_080},
		{1000, 1, 1_250_000_000},
		{1000, 255, 761_721_286},
		{1000, 512, 760_811_350},
		{1_000_000, 1, 1_643_935_564},
		{1_000_000, 255, 1_001_776_569},
		{1_000_000, 512, 1_000_579_870},
	}

	for _, c := range cases {
		got, err := CoinbaseAmount(c.distance, c.difficulty)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "distance=%d difficulty=%d", c.distance, c.difficulty)
	}
}

func TestCoinbaseAmountEve(t *testing.T) {
	amount, err := CoinbaseAmount(0, 0)
	require.NoError(t, err)
	assert.Equal(t, CoinbaseBase, amount)
}

func TestCoinbaseAmountRejectsOutOfRangeDifficulty(t *testing.T) {
	_, err := CoinbaseAmount(1, 0)
	assert.Error(t, err)

	_, err = CoinbaseAmount(1, MaxDifficultyBits+1)
	assert.Error(t, err)
}
