package memorykv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alsacoin/avalanche-node/internal/errors"
)

func TestInsertGetLookup(t *testing.T) {
	ctx := context.Background()
	s := New(0, 0, 1)

	ok, err := s.Lookup(ctx, []byte("k1"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Insert(ctx, []byte("k1"), []byte("v1")))

	ok, err = s.Lookup(ctx, []byte("k1"))
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := s.Get(ctx, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	assert.ErrorIs(t, s.Insert(ctx, []byte("k1"), []byte("v2")), errors.ErrAlreadyFound)
}

func TestUpdateRequiresExisting(t *testing.T) {
	ctx := context.Background()
	s := New(0, 0, 1)

	assert.ErrorIs(t, s.Update(ctx, []byte("missing"), []byte("v")), errors.ErrNotFound)

	require.NoError(t, s.Insert(ctx, []byte("k"), []byte("v1")))
	require.NoError(t, s.Update(ctx, []byte("k"), []byte("v2")))

	v, err := s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)
}

// TestSizeAccounting is P9: after any sequence of insert/remove operations,
// keys_size and values_size equal the exact sums of current key and value
// lengths.
func TestSizeAccounting(t *testing.T) {
	ctx := context.Background()
	s := New(0, 0, 1)

	require.NoError(t, s.Insert(ctx, []byte("aa"), []byte("111")))
	require.NoError(t, s.Insert(ctx, []byte("bb"), []byte("22")))

	assert.Equal(t, uint64(4), s.KeysSize())
	assert.Equal(t, uint64(5), s.ValuesSize())

	require.NoError(t, s.Update(ctx, []byte("bb"), []byte("x")))
	assert.Equal(t, uint64(4), s.KeysSize())
	assert.Equal(t, uint64(4), s.ValuesSize())

	require.NoError(t, s.Remove(ctx, []byte("aa")))
	assert.Equal(t, uint64(2), s.KeysSize())
	assert.Equal(t, uint64(1), s.ValuesSize())

	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, uint64(0), s.KeysSize())
	assert.Equal(t, uint64(0), s.ValuesSize())
}

func TestQueryRangeAndCount(t *testing.T) {
	ctx := context.Background()
	s := New(0, 0, 1)

	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Insert(ctx, []byte(k), []byte(k)))
	}

	kvs, err := s.Query(ctx, []byte("b"), []byte("d"), 0, 0)
	require.NoError(t, err)
	require.Len(t, kvs, 2)
	assert.Equal(t, []byte("b"), kvs[0].Key)
	assert.Equal(t, []byte("c"), kvs[1].Key)

	count, err := s.Count(ctx, nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)
}

func TestSampleIsSeedableAndWithinBounds(t *testing.T) {
	ctx := context.Background()
	s := New(0, 0, 42)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Insert(ctx, []byte{byte(i)}, []byte{byte(i)}))
	}

	sample, err := s.Sample(ctx, nil, nil, 3)
	require.NoError(t, err)
	assert.Len(t, sample, 3)

	seen := map[byte]bool{}
	for _, kv := range sample {
		assert.False(t, seen[kv.Key[0]], "sample must be without replacement")
		seen[kv.Key[0]] = true
	}
}

func TestMaxValueSizeEnforced(t *testing.T) {
	ctx := context.Background()
	s := New(2, 0, 1)

	assert.Error(t, s.Insert(ctx, []byte("k"), []byte("too-long")))
	require.NoError(t, s.Insert(ctx, []byte("k"), []byte("ok")))
}

func TestRemoveBatchAndRange(t *testing.T) {
	ctx := context.Background()
	s := New(0, 0, 1)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.Insert(ctx, []byte(k), []byte(k)))
	}

	require.NoError(t, s.RemoveBatch(ctx, [][]byte{[]byte("a")}))
	ok, err := s.Lookup(ctx, []byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RemoveRange(ctx, nil, nil, 0))
	count, err := s.Count(ctx, nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}
