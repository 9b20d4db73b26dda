package tier

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tierstore/mem"
	"github.com/hupe1980/tierstore/model"
	"github.com/hupe1980/tierstore/record"
)

func newCold(t *testing.T) *ColdTier {
	t.Helper()

	c, err := OpenColdTier(filepath.Join(t.TempDir(), "cold.db"), mem.NewAlignedAllocator())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func committed(t *testing.T, payload string, version, freq int64) *record.Record {
	t.Helper()

	rec := record.New([]byte(payload))
	rec.SetVersion(version)
	rec.SetFreq(freq)
	return rec
}

func TestColdTierCommitGet(t *testing.T) {
	c := newCold(t)

	_, err := c.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Commit(1, committed(t, "vector-bytes", 3, 11)))

	got, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("vector-bytes"), got.Payload())
	assert.Equal(t, int64(3), got.Version())
	assert.Equal(t, int64(11), got.Freq())

	assert.True(t, c.Contains(1))
	assert.Equal(t, 1, c.Len())
}

func TestColdTierCommitReplaces(t *testing.T) {
	c := newCold(t)

	require.NoError(t, c.Commit(1, committed(t, "old", 1, 0)))
	require.NoError(t, c.Commit(1, committed(t, "new", 2, 0)))

	got, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got.Payload())
	assert.Equal(t, 1, c.Len())
}

func TestColdTierTryInsert(t *testing.T) {
	c := newCold(t)

	require.NoError(t, c.TryInsert(1, committed(t, "first", 0, 0)))
	assert.ErrorIs(t, c.TryInsert(1, committed(t, "second", 0, 0)), ErrAlreadyExists)

	got, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got.Payload())
}

func TestColdTierRemove(t *testing.T) {
	c := newCold(t)

	require.NoError(t, c.Commit(1, committed(t, "x", 0, 0)))
	require.NoError(t, c.Remove(1))

	assert.ErrorIs(t, c.Remove(1), ErrNotFound)
	assert.False(t, c.Contains(1))
	assert.Zero(t, c.Len())

	// The bloom filter still remembers the key; lookups must hit the
	// database and still miss.
	_, err := c.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestColdTierSnapshotOrdered(t *testing.T) {
	c := newCold(t)

	for _, k := range []model.Key{9, 2, 7} {
		require.NoError(t, c.Commit(k, committed(t, "p", 0, 0)))
	}

	keys, recs, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []model.Key{2, 7, 9}, keys)
	assert.Len(t, recs, 3)
}

func TestColdTierIterator(t *testing.T) {
	c := newCold(t)

	for k := model.Key(1); k <= 3; k++ {
		require.NoError(t, c.Commit(k, committed(t, "payload", int64(k), 0)))
	}

	c.Lock()
	defer c.Unlock()

	it, err := c.NewIterator()
	require.NoError(t, err)
	defer it.Close()

	var keys []model.Key
	for it.Next() {
		keys = append(keys, it.Key())
		rec, err := it.Record()
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), rec.Payload())
		assert.Equal(t, int64(it.Key()), rec.Version())
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []model.Key{1, 2, 3}, keys)

	// Restartable from the start.
	require.NoError(t, it.Reset())
	require.True(t, it.Next())
	assert.Equal(t, model.Key(1), it.Key())
}

func TestColdTierReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cold.db")
	alloc := mem.NewAlignedAllocator()

	c, err := OpenColdTier(path, alloc)
	require.NoError(t, err)
	require.NoError(t, c.Commit(1, committed(t, "durable", 5, 2)))
	require.NoError(t, c.Commit(2, committed(t, "durable-too", 6, 3)))
	require.NoError(t, c.Close())

	c, err = OpenColdTier(path, alloc)
	require.NoError(t, err)
	defer c.Close()

	// Count and bloom filter are rebuilt from disk.
	assert.Equal(t, 2, c.Len())

	got, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), got.Payload())
	assert.Equal(t, int64(5), got.Version())
}

func TestColdTierShrink(t *testing.T) {
	c := newCold(t)

	require.NoError(t, c.Commit(1, committed(t, "x", 0, 0)))
	require.NoError(t, c.Remove(1))

	// Best effort: must never fail the caller.
	c.Shrink(model.ShrinkHint{Compact: true})
	c.Shrink(model.ShrinkHint{})
}
