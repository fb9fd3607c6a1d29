package leveldbkv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alsacoin/avalanche-node/internal/errors"
	"github.com/alsacoin/avalanche-node/internal/storage"
)

func openTestStore(t *testing.T, maxValueSize, maxSize uint64) *Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "db")
	s, err := Open(dir, maxValueSize, maxSize, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertGetLookup(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 0, 0)

	ok, err := s.Lookup(ctx, []byte("k1"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Insert(ctx, []byte("k1"), []byte("v1")))

	v, err := s.Get(ctx, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	assert.ErrorIs(t, s.Insert(ctx, []byte("k1"), []byte("v2")), errors.ErrAlreadyFound)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 0, 0)

	_, err := s.Get(ctx, []byte("missing"))
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

// TestSizeAccounting is P9: after any sequence of insert/remove operations,
// keys_size and values_size equal the exact sums of current key and value
// lengths, and this survives a reopen via recomputeSizes.
func TestSizeAccounting(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "db")

	s, err := Open(dir, 0, 0, 1)
	require.NoError(t, err)

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

	require.NoError(t, s.Close())

	reopened, err := Open(dir, 0, 0, 1)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, uint64(2), reopened.KeysSize())
	assert.Equal(t, uint64(1), reopened.ValuesSize())
}

func TestInsertThenRemoveReturnsSizesToZero(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 0, 0)

	require.NoError(t, s.Insert(ctx, []byte("k"), []byte("v")))
	require.NoError(t, s.Remove(ctx, []byte("k")))

	assert.Equal(t, uint64(0), s.KeysSize())
	assert.Equal(t, uint64(0), s.ValuesSize())
}

func TestQueryRangeAndCount(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 0, 0)

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

func TestSampleWithoutReplacement(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 0, 0)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Insert(ctx, []byte{byte(i)}, []byte{byte(i)}))
	}

	sample, err := s.Sample(ctx, nil, nil, 3)
	require.NoError(t, err)
	assert.Len(t, sample, 3)

	seen := map[byte]bool{}
	for _, kv := range sample {
		assert.False(t, seen[kv.Key[0]])
		seen[kv.Key[0]] = true
	}
}

func TestMaxValueSizeEnforced(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 2, 0)

	assert.Error(t, s.Insert(ctx, []byte("k"), []byte("too-long")))
	require.NoError(t, s.Insert(ctx, []byte("k"), []byte("ok")))
}

func TestInsertBatchAndRemoveRange(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 0, 0)

	require.NoError(t, s.InsertBatch(ctx, []storage.KV{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte("3")},
	}))

	count, err := s.Count(ctx, nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	require.NoError(t, s.RemoveRange(ctx, nil, nil, 0))
	count, err = s.Count(ctx, nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}
