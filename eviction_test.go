package tierstore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tierstore/model"
)

// hotKeysDriver evicts whatever is currently hot-resident, oldest key
// first.
type hotKeysDriver struct {
	mu    sync.Mutex
	store *Store
	keys  []model.Key
}

func (d *hotKeysDriver) Candidates(max int) []model.Key {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []model.Key
	for _, k := range d.keys {
		if len(out) == max {
			break
		}
		if d.store.LookupTier(k) == model.TierHot {
			out = append(out, k)
		}
	}
	return out
}

func TestEvictionRunner(t *testing.T) {
	s := openStore(t)

	keys := []model.Key{1, 2, 3, 4, 5}
	for _, k := range keys {
		_, err := s.GetOrCreate(k, 8)
		require.NoError(t, err)
	}

	driver := &hotKeysDriver{store: s, keys: keys}
	runner := NewEvictionRunner(s, driver, func(o *EvictionRunnerOptions) {
		o.Interval = 5 * time.Millisecond
		o.BatchSize = 2
	})
	runner.Start()
	defer runner.Stop()

	assert.Eventually(t, func() bool {
		return s.TierLen(model.TierCold) == len(keys)
	}, 2*time.Second, 5*time.Millisecond)

	for _, k := range keys {
		rec, err := s.Get(k)
		require.NoError(t, err)
		assert.Equal(t, 8, rec.Len())
		s.Release(rec)
	}
	assert.Equal(t, len(keys), s.Len())
}

func TestEvictionRunnerStopIdempotent(t *testing.T) {
	s := openStore(t)

	driver := &hotKeysDriver{store: s}
	runner := NewEvictionRunner(s, driver)
	runner.Start()
	runner.Stop()
	runner.Stop()
}

func TestEvictionRunnerEmptyPass(t *testing.T) {
	s := openStore(t)

	driver := &hotKeysDriver{store: s}
	runner := NewEvictionRunner(s, driver, func(o *EvictionRunnerOptions) {
		o.Interval = time.Millisecond
	})
	runner.Start()

	time.Sleep(20 * time.Millisecond)
	runner.Stop()

	assert.Zero(t, s.Len())
}
