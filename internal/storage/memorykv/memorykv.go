// Package memorykv implements internal/storage.Store over an in-memory
// btree; the tests use it for both the store and the pool, while the node
// binary opens leveldbkv for both.
package memorykv

import (
	"bytes"
	"context"
	"math/rand"
	"sync"

	"github.com/google/btree"

	"github.com/alsacoin/avalanche-node/internal/errors"
	"github.com/alsacoin/avalanche-node/internal/storage"
)

type item struct {
	key   []byte
	value []byte
}

func (it *item) Less(than btree.Item) bool {
	return bytes.Compare(it.key, than.(*item).key) < 0
}

// Store is a sync.Mutex-guarded google/btree.BTree keyed by raw bytes.
type Store struct {
	mu   sync.Mutex
	tree *btree.BTree
	rng  *rand.Rand

	maxValueSize uint64
	maxSize      uint64
	keysSize     uint64
	valuesSize   uint64
}

// New builds an empty store. seed fixes the sampling RNG for reproducible
// tests; every seed, 0 included, gives a deterministic sequence, so a
// non-deterministic seed is the caller's to supply.
func New(maxValueSize, maxSize uint64, seed int64) *Store {
	return &Store{
		tree:         btree.New(32),
		rng:          rand.New(rand.NewSource(seed)),
		maxValueSize: maxValueSize,
		maxSize:      maxSize,
	}
}

func (s *Store) Lookup(_ context.Context, key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tree.Get(&item{key: key}) != nil, nil
}

func (s *Store) Get(_ context.Context, key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := s.tree.Get(&item{key: key})
	if found == nil {
		return nil, errors.ErrNotFound
	}

	v := found.(*item).value
	out := make([]byte, len(v))
	copy(out, v)

	return out, nil
}

func (s *Store) Query(_ context.Context, from, to []byte, count, skip uint64) ([]storage.KV, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []storage.KV
	var seen uint64

	visit := func(i btree.Item) bool {
		it := i.(*item)
		if to != nil && bytes.Compare(it.key, to) >= 0 {
			return false
		}

		if seen < skip {
			seen++
			return true
		}

		out = append(out, storage.KV{Key: cloneBytes(it.key), Value: cloneBytes(it.value)})

		if count > 0 && uint64(len(out)) >= count {
			return false
		}

		return true
	}

	if from != nil {
		s.tree.AscendGreaterOrEqual(&item{key: from}, visit)
	} else {
		s.tree.Ascend(visit)
	}

	return out, nil
}

func (s *Store) Count(ctx context.Context, from, to []byte, skip uint64) (uint64, error) {
	kvs, err := s.Query(ctx, from, to, 0, skip)
	if err != nil {
		return 0, err
	}
	return uint64(len(kvs)), nil
}

// Sample draws a uniform, without-replacement sample of up to count
// entries from [from, to) via reservoir sampling, so it runs in one pass
// regardless of range size.
func (s *Store) Sample(_ context.Context, from, to []byte, count uint64) ([]storage.KV, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if count == 0 {
		return nil, nil
	}

	reservoir := make([]storage.KV, 0, count)
	var seen uint64

	visit := func(i btree.Item) bool {
		it := i.(*item)
		if to != nil && bytes.Compare(it.key, to) >= 0 {
			return false
		}

		kv := storage.KV{Key: cloneBytes(it.key), Value: cloneBytes(it.value)}

		if uint64(len(reservoir)) < count {
			reservoir = append(reservoir, kv)
		} else {
			j := s.rng.Int63n(int64(seen + 1))
			if uint64(j) < count {
				reservoir[j] = kv
			}
		}

		seen++

		return true
	}

	if from != nil {
		s.tree.AscendGreaterOrEqual(&item{key: from}, visit)
	} else {
		s.tree.Ascend(visit)
	}

	return reservoir, nil
}

func (s *Store) Insert(_ context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tree.Get(&item{key: key}) != nil {
		return errors.ErrAlreadyFound
	}

	return s.insertLocked(key, value)
}

func (s *Store) Create(ctx context.Context, key, value []byte) error {
	return s.Insert(ctx, key, value)
}

func (s *Store) Update(_ context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.tree.Get(&item{key: key})
	if old == nil {
		return errors.ErrNotFound
	}

	oldIt := old.(*item)
	s.keysSize -= uint64(len(oldIt.key))
	s.valuesSize -= uint64(len(oldIt.value))

	if err := s.insertLocked(key, value); err != nil {
		s.keysSize += uint64(len(oldIt.key))
		s.valuesSize += uint64(len(oldIt.value))
		return err
	}

	return nil
}

func (s *Store) insertLocked(key, value []byte) error {
	if s.maxValueSize > 0 && uint64(len(value)) > s.maxValueSize {
		return errors.New(errors.ERR_INVALID_SIZE, "value size %d exceeds max %d", len(value), s.maxValueSize)
	}

	if s.maxSize > 0 && s.keysSize+s.valuesSize+uint64(len(key))+uint64(len(value)) > s.maxSize {
		return errors.New(errors.ERR_INVALID_SIZE, "store size budget %d exceeded", s.maxSize)
	}

	k := cloneBytes(key)
	v := cloneBytes(value)

	s.tree.ReplaceOrInsert(&item{key: k, value: v})
	s.keysSize += uint64(len(k))
	s.valuesSize += uint64(len(v))

	return nil
}

func (s *Store) InsertBatch(ctx context.Context, kvs []storage.KV) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, kv := range kvs {
		if s.tree.Get(&item{key: kv.Key}) != nil {
			return errors.ErrAlreadyFound
		}
	}

	for i, kv := range kvs {
		if err := s.insertLocked(kv.Key, kv.Value); err != nil {
			for _, done := range kvs[:i] {
				_ = s.removeLocked(done.Key)
			}
			return err
		}
	}

	return nil
}

func (s *Store) Remove(_ context.Context, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeLocked(key)
}

func (s *Store) removeLocked(key []byte) error {
	removed := s.tree.Delete(&item{key: key})
	if removed == nil {
		return errors.ErrNotFound
	}

	it := removed.(*item)
	s.keysSize -= uint64(len(it.key))
	s.valuesSize -= uint64(len(it.value))

	return nil
}

func (s *Store) RemoveBatch(_ context.Context, keys [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		if err := s.removeLocked(k); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) RemoveRange(_ context.Context, from, to []byte, skip uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toDelete [][]byte
	var seen uint64

	visit := func(i btree.Item) bool {
		it := i.(*item)
		if to != nil && bytes.Compare(it.key, to) >= 0 {
			return false
		}

		if seen < skip {
			seen++
			return true
		}

		toDelete = append(toDelete, it.key)

		return true
	}

	if from != nil {
		s.tree.AscendGreaterOrEqual(&item{key: from}, visit)
	} else {
		s.tree.Ascend(visit)
	}

	for _, k := range toDelete {
		_ = s.removeLocked(k)
	}

	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree.Clear(false)
	s.keysSize = 0
	s.valuesSize = 0

	return nil
}

func (s *Store) MaxValueSize() uint64 { return s.maxValueSize }
func (s *Store) MaxSize() uint64      { return s.maxSize }

func (s *Store) KeysSize() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keysSize
}

func (s *Store) ValuesSize() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valuesSize
}

func (s *Store) Close() error { return nil }

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ storage.Store = (*Store)(nil)
