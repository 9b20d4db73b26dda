package tierstore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tierstore/model"
)

func TestCheckpointSnapshot(t *testing.T) {
	s := openStore(t)

	for k := model.Key(1); k <= 4; k++ {
		rec, err := s.GetOrCreate(k, 8)
		require.NoError(t, err)
		rec.Payload()[0] = byte(k)
		rec.SetVersion(int64(k * 10))
		rec.SetFreq(int64(k))
	}
	require.NoError(t, s.Evict([]model.Key{3, 4}))

	cp := s.CheckpointSnapshot(nil)

	// Hot entries materialized eagerly, key-ordered, parallel listings.
	assert.Equal(t, []model.Key{1, 2}, cp.Keys)
	assert.Equal(t, []int64{10, 20}, cp.Versions)
	assert.Equal(t, []int64{1, 2}, cp.Freqs)
	require.Len(t, cp.Values, 2)
	assert.Equal(t, byte(1), cp.Values[0][0])
	assert.Equal(t, byte(2), cp.Values[1][0])

	// Cold entries stream lazily through the iterator.
	var coldKeys []model.Key
	it := cp.Iterator()
	for it.Next() {
		coldKeys = append(coldKeys, it.Key())
		rec, err := it.Record()
		require.NoError(t, err)
		assert.Equal(t, byte(it.Key()), rec.Payload()[0])
		s.Release(rec)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []model.Key{3, 4}, coldKeys)

	require.NoError(t, cp.Close())
	require.NoError(t, cp.Close()) // idempotent

	// The cold lock was released: subsequent cold operations proceed.
	got, err := s.Get(3)
	require.NoError(t, err)
	assert.Equal(t, byte(3), got.Payload()[0])
}

func TestCheckpointSnapshotFilter(t *testing.T) {
	s := openStore(t)

	for k := model.Key(1); k <= 4; k++ {
		rec, err := s.GetOrCreate(k, 8)
		require.NoError(t, err)
		rec.SetFreq(int64(k))
	}

	// Only records accessed more than twice are eligible.
	cp := s.CheckpointSnapshot(func(version, freq int64) bool {
		return freq > 2
	})
	defer cp.Close()

	assert.Equal(t, []model.Key{3, 4}, cp.Keys)
	assert.Equal(t, []int64{3, 4}, cp.Freqs)
}

func TestCheckpointSnapshotValueCopies(t *testing.T) {
	s := openStore(t)

	rec, err := s.GetOrCreate(1, 8)
	require.NoError(t, err)
	rec.Payload()[0] = 0xAA

	cp := s.CheckpointSnapshot(nil)
	defer cp.Close()

	// Mutation after the snapshot must not leak into the listing.
	rec.Payload()[0] = 0xBB
	assert.Equal(t, byte(0xAA), cp.Values[0][0])
}

func TestCheckpointCloseConcurrent(t *testing.T) {
	s := openStore(t)

	_, err := s.GetOrCreate(1, 8)
	require.NoError(t, err)
	require.NoError(t, s.Evict([]model.Key{1}))

	cp := s.CheckpointSnapshot(nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cp.Close()
		}()
	}
	wg.Wait()

	// The cold lock was released exactly once: the tier is usable and not
	// double-unlocked.
	assert.Equal(t, model.TierCold, s.LookupTier(1))
}

func TestCheckpointIteratorReset(t *testing.T) {
	s := openStore(t)

	_, err := s.GetOrCreate(1, 8)
	require.NoError(t, err)
	require.NoError(t, s.Evict([]model.Key{1}))

	cp := s.CheckpointSnapshot(nil)
	defer cp.Close()

	it := cp.Iterator()
	require.True(t, it.Next())
	require.False(t, it.Next())

	require.NoError(t, it.Reset())
	require.True(t, it.Next())
	assert.Equal(t, model.Key(1), it.Key())
}
