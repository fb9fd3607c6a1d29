// Package leveldbkv implements internal/storage.Store over an embedded
// single-file syndtr/goleveldb database; the node binary opens one for its
// accepted store and one for its pool.
package leveldbkv

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/alsacoin/avalanche-node/internal/errors"
	"github.com/alsacoin/avalanche-node/internal/storage"
)

// Store wraps a *leveldb.DB behind internal/storage.Store. leveldb
// guarantees goroutine-safe access internally; keysSize/valuesSize are
// atomic counters, and the mutex here only serialises the sampling RNG.
type Store struct {
	db   *leveldb.DB
	mu   sync.Mutex
	rng  *rand.Rand

	maxValueSize uint64
	maxSize      uint64
	keysSize     atomic.Uint64
	valuesSize   atomic.Uint64
}

// Open opens (creating if absent) the leveldb database at dir.
func Open(dir string, maxValueSize, maxSize uint64, seed int64) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, errors.New(errors.ERR_IO, "open leveldb at %s: %v", dir, err)
	}

	s := &Store{
		db:           db,
		rng:          rand.New(rand.NewSource(seed)),
		maxValueSize: maxValueSize,
		maxSize:      maxSize,
	}

	if err := s.recomputeSizes(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) recomputeSizes() error {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	var keysSize, valuesSize uint64
	for iter.Next() {
		keysSize += uint64(len(iter.Key()))
		valuesSize += uint64(len(iter.Value()))
	}

	if err := iter.Error(); err != nil {
		return errors.New(errors.ERR_IO, "recompute leveldb sizes: %v", err)
	}

	s.keysSize.Store(keysSize)
	s.valuesSize.Store(valuesSize)

	return nil
}

func (s *Store) Lookup(_ context.Context, key []byte) (bool, error) {
	ok, err := s.db.Has(key, nil)
	if err != nil {
		return false, errors.New(errors.ERR_IO, "lookup: %v", err)
	}
	return ok, nil
}

func (s *Store) Get(_ context.Context, key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, errors.ErrNotFound
		}
		return nil, errors.New(errors.ERR_IO, "get: %v", err)
	}
	return v, nil
}

func (s *Store) rangeOf(from, to []byte) *util.Range {
	if from == nil && to == nil {
		return nil
	}
	return &util.Range{Start: from, Limit: to}
}

func (s *Store) Query(_ context.Context, from, to []byte, count, skip uint64) ([]storage.KV, error) {
	iter := s.db.NewIterator(s.rangeOf(from, to), nil)
	defer iter.Release()

	var out []storage.KV
	var seen uint64

	for iter.Next() {
		if seen < skip {
			seen++
			continue
		}

		out = append(out, storage.KV{Key: cloneBytes(iter.Key()), Value: cloneBytes(iter.Value())})

		if count > 0 && uint64(len(out)) >= count {
			break
		}
	}

	if err := iter.Error(); err != nil {
		return nil, errors.New(errors.ERR_IO, "query: %v", err)
	}

	return out, nil
}

func (s *Store) Count(_ context.Context, from, to []byte, skip uint64) (uint64, error) {
	iter := s.db.NewIterator(s.rangeOf(from, to), nil)
	defer iter.Release()

	var n, seen uint64
	for iter.Next() {
		if seen < skip {
			seen++
			continue
		}
		n++
	}

	if err := iter.Error(); err != nil {
		return 0, errors.New(errors.ERR_IO, "count: %v", err)
	}

	return n, nil
}

// Sample draws a uniform, without-replacement sample via reservoir
// sampling over a single forward iteration of [from, to).
func (s *Store) Sample(_ context.Context, from, to []byte, count uint64) ([]storage.KV, error) {
	if count == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	iter := s.db.NewIterator(s.rangeOf(from, to), nil)
	defer iter.Release()

	reservoir := make([]storage.KV, 0, count)
	var seen uint64

	for iter.Next() {
		kv := storage.KV{Key: cloneBytes(iter.Key()), Value: cloneBytes(iter.Value())}

		if uint64(len(reservoir)) < count {
			reservoir = append(reservoir, kv)
		} else {
			j := s.rng.Int63n(int64(seen + 1))
			if uint64(j) < count {
				reservoir[j] = kv
			}
		}

		seen++
	}

	if err := iter.Error(); err != nil {
		return nil, errors.New(errors.ERR_IO, "sample: %v", err)
	}

	return reservoir, nil
}

func (s *Store) checkBudget(key, value []byte) error {
	if s.maxValueSize > 0 && uint64(len(value)) > s.maxValueSize {
		return errors.New(errors.ERR_INVALID_SIZE, "value size %d exceeds max %d", len(value), s.maxValueSize)
	}

	if s.maxSize > 0 && s.keysSize.Load()+s.valuesSize.Load()+uint64(len(key))+uint64(len(value)) > s.maxSize {
		return errors.New(errors.ERR_INVALID_SIZE, "store size budget %d exceeded", s.maxSize)
	}

	return nil
}

func (s *Store) Insert(ctx context.Context, key, value []byte) error {
	exists, err := s.Lookup(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return errors.ErrAlreadyFound
	}

	if err := s.checkBudget(key, value); err != nil {
		return err
	}

	if err := s.db.Put(key, value, nil); err != nil {
		return errors.New(errors.ERR_IO, "insert: %v", err)
	}

	s.keysSize.Add(uint64(len(key)))
	s.valuesSize.Add(uint64(len(value)))

	return nil
}

func (s *Store) Create(ctx context.Context, key, value []byte) error {
	return s.Insert(ctx, key, value)
}

func (s *Store) Update(ctx context.Context, key, value []byte) error {
	old, err := s.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := s.checkBudget(key, value); err != nil {
		return err
	}

	if err := s.db.Put(key, value, nil); err != nil {
		return errors.New(errors.ERR_IO, "update: %v", err)
	}

	s.valuesSize.Add(uint64(len(value)) - uint64(len(old)))

	return nil
}

func (s *Store) InsertBatch(ctx context.Context, kvs []storage.KV) error {
	for _, kv := range kvs {
		exists, err := s.Lookup(ctx, kv.Key)
		if err != nil {
			return err
		}
		if exists {
			return errors.ErrAlreadyFound
		}
	}

	batch := new(leveldb.Batch)
	var keysDelta, valuesDelta uint64

	for _, kv := range kvs {
		if err := s.checkBudget(kv.Key, kv.Value); err != nil {
			return err
		}
		batch.Put(kv.Key, kv.Value)
		keysDelta += uint64(len(kv.Key))
		valuesDelta += uint64(len(kv.Value))
	}

	if err := s.db.Write(batch, nil); err != nil {
		return errors.New(errors.ERR_IO, "insert batch: %v", err)
	}

	s.keysSize.Add(keysDelta)
	s.valuesSize.Add(valuesDelta)

	return nil
}

func (s *Store) Remove(ctx context.Context, key []byte) error {
	old, err := s.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := s.db.Delete(key, nil); err != nil {
		return errors.New(errors.ERR_IO, "remove: %v", err)
	}

	subUint64(&s.keysSize, uint64(len(key)))
	subUint64(&s.valuesSize, uint64(len(old)))

	return nil
}

func (s *Store) RemoveBatch(ctx context.Context, keys [][]byte) error {
	for _, k := range keys {
		if err := s.Remove(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) RemoveRange(ctx context.Context, from, to []byte, skip uint64) error {
	kvs, err := s.Query(ctx, from, to, 0, skip)
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	var keysDelta, valuesDelta uint64

	for _, kv := range kvs {
		batch.Delete(kv.Key)
		keysDelta += uint64(len(kv.Key))
		valuesDelta += uint64(len(kv.Value))
	}

	if err := s.db.Write(batch, nil); err != nil {
		return errors.New(errors.ERR_IO, "remove range: %v", err)
	}

	subUint64(&s.keysSize, keysDelta)
	subUint64(&s.valuesSize, valuesDelta)

	return nil
}

// subUint64 atomically subtracts delta from counter, saturating at 0.
func subUint64(counter *atomic.Uint64, delta uint64) {
	for {
		old := counter.Load()
		next := old - delta
		if delta > old {
			next = 0
		}
		if counter.CompareAndSwap(old, next) {
			return
		}
	}
}

func (s *Store) Clear(_ context.Context) error {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(cloneBytes(iter.Key()))
	}

	if err := iter.Error(); err != nil {
		return errors.New(errors.ERR_IO, "clear: %v", err)
	}

	if err := s.db.Write(batch, nil); err != nil {
		return errors.New(errors.ERR_IO, "clear: %v", err)
	}

	s.keysSize.Store(0)
	s.valuesSize.Store(0)

	return nil
}

func (s *Store) MaxValueSize() uint64 { return s.maxValueSize }
func (s *Store) MaxSize() uint64      { return s.maxSize }
func (s *Store) KeysSize() uint64     { return s.keysSize.Load() }
func (s *Store) ValuesSize() uint64   { return s.valuesSize.Load() }

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.New(errors.ERR_IO, "close: %v", err)
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ storage.Store = (*Store)(nil)
