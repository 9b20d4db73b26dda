package tierstore

import (
	"sync"

	"github.com/hupe1980/tierstore/model"
	"github.com/hupe1980/tierstore/tier"
)

// FilterFunc decides whether a hot-tier record is eligible for a
// checkpoint, given its metadata counters. It is an opaque external
// policy; nil means every record is eligible.
type FilterFunc func(version, freq int64) bool

// Checkpoint is the export surface handed to an external checkpoint
// writer.
//
// Hot-tier entries are materialized eagerly into the parallel listings:
// Keys[i], Values[i], Versions[i] and Freqs[i] describe one record. The
// hot tier is small enough to copy; the cold tier may be arbitrarily
// large, so its entries are exposed only through the lazy Iterator.
//
// The iterator is handed over with the cold tier's mutex held. The caller
// must drain it and then call Close, which releases both the cursor and
// the mutex. Until then every other cold-tier operation blocks.
type Checkpoint struct {
	Keys     []model.Key
	Values   [][]byte
	Versions []int64
	Freqs    []int64

	iter      *tier.Iterator
	cold      *tier.ColdTier
	closeOnce sync.Once
}

// Iterator returns the lazy cursor over cold-resident entries.
func (c *Checkpoint) Iterator() *tier.Iterator {
	return c.iter
}

// Close releases the cold cursor and the cold tier's mutex. It is
// idempotent and safe to call from multiple goroutines; the mutex is
// released exactly once.
func (c *Checkpoint) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.iter.Close()
		c.cold.Unlock()
	})
	return err
}

// CheckpointSnapshot gathers the checkpoint export surface.
//
// Phase one locks the hot tier and eagerly copies every eligible record's
// payload and metadata counters into the parallel listings. Phase two
// locks the cold tier and opens the lazy iterator. The two phases are not
// atomic with respect to each other: an eviction between them may appear
// in both listings or in neither. That relaxed contract is intentional
// (see Snapshot).
//
// A persistence failure while opening the cold cursor panics: a checkpoint
// that silently omits the cold tier would be indistinguishable from a
// complete one.
func (s *Store) CheckpointSnapshot(filter FilterFunc) *Checkpoint {
	cp := &Checkpoint{}

	s.hot.Lock()
	keys, recs, _ := s.hot.SnapshotLocked()
	for i, key := range keys {
		version := recs[i].Version()
		freq := recs[i].Freq()
		if filter != nil && !filter(version, freq) {
			continue
		}

		value := make([]byte, recs[i].Len())
		copy(value, recs[i].Payload())

		cp.Keys = append(cp.Keys, key)
		cp.Values = append(cp.Values, value)
		cp.Versions = append(cp.Versions, version)
		cp.Freqs = append(cp.Freqs, freq)
	}
	s.hot.Unlock()

	s.cold.Lock()
	it, err := s.cold.NewIterator()
	if err != nil {
		s.cold.Unlock()
		s.logger.Error("checkpoint: opening cold cursor failed", "error", err)
		panic(err)
	}

	cp.iter = it
	cp.cold = s.cold
	return cp
}
