package model

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDigestRoundTrip is P1 for Digest: decode(encode(x)) = x.
func TestDigestRoundTrip(t *testing.T) {
	var d Digest
	copy(d[:], []byte("some collision-resistant digest"))

	b, err := cbor.Marshal(d)
	require.NoError(t, err)

	var out Digest
	require.NoError(t, cbor.Unmarshal(b, &out))

	assert.Equal(t, d, out)
}

func TestDigestOrderingAndZero(t *testing.T) {
	assert.True(t, ZeroDigest.IsZero())

	var a, b Digest
	a[0] = 1
	b[0] = 2

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.Equal(t, -1, a.Compare(b))
}

func TestDigestSetOperations(t *testing.T) {
	var a, b, c Digest
	a[0], b[0], c[0] = 1, 2, 3

	s1 := NewDigestSet(a, b)
	s2 := NewDigestSet(b, c)

	assert.True(t, s1.Contains(a))
	assert.False(t, s1.Contains(c))

	minus := s1.Minus(s2)
	assert.True(t, minus.Contains(a))
	assert.False(t, minus.Contains(b))

	union := s1.Union(s2)
	assert.Len(t, union, 3)

	sorted := union.Sorted()
	require.Len(t, sorted, 3)
	assert.Equal(t, a, sorted[0])
	assert.Equal(t, b, sorted[1])
	assert.Equal(t, c, sorted[2])
}

func TestDigestUnmarshalBinaryRejectsWrongLength(t *testing.T) {
	var d Digest
	assert.Error(t, d.UnmarshalBinary([]byte("too short")))
}
