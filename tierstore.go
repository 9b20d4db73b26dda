package tierstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/tierstore/internal/freelist"
	"github.com/hupe1980/tierstore/mem"
	"github.com/hupe1980/tierstore/model"
	"github.com/hupe1980/tierstore/record"
	"github.com/hupe1980/tierstore/resource"
	"github.com/hupe1980/tierstore/tier"
)

// bulkInsertConcurrency bounds the fan-out of BulkInsert.
const bulkInsertConcurrency = 16

// Store is the tier coordinator: a single coherent view over a fast
// in-memory hot tier and a durable cold tier. It guarantees that at most
// one live copy of a record exists per key, resolves lookup and creation
// races, and drives hot-to-cold migration.
//
// All methods are safe for concurrent use. Cross-tier operations that need
// both tiers' locks acquire them through dualLock, which fixes the global
// order (hot before cold).
type Store struct {
	config  Config
	hot     *tier.HotTier
	cold    *tier.ColdTier
	rc      *resource.Controller
	alloc   mem.Allocator
	retired *freelist.List
	logger  *Logger
	metrics MetricsCollector
}

// Open creates a Store with its cold tier at path. The configuration is
// immutable after this call.
func Open(path string, optFns ...Option) (*Store, error) {
	o := options{
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
		alloc:   mem.NewAlignedAllocator(),
		config: Config{
			Path:          path,
			BloomCapacity: 1_000_000,
			BloomFPRate:   0.01,
		},
	}
	for _, fn := range optFns {
		fn(&o)
	}
	o.config.Path = path

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:      o.config.MemoryLimitBytes,
		EvictionIOBytesPerSec: o.config.EvictionIOBytesPerSec,
	})
	alloc := mem.NewTrackedAllocator(o.alloc, rc)

	cold, err := tier.OpenColdTier(path, alloc, func(co *tier.ColdOptions) {
		co.BloomCapacity = o.config.BloomCapacity
		co.BloomFPRate = o.config.BloomFPRate
		co.Logger = o.logger.Logger
	})
	if err != nil {
		return nil, err
	}

	return &Store{
		config:  o.config,
		hot:     tier.NewHotTier(alloc),
		cold:    cold,
		rc:      rc,
		alloc:   alloc,
		retired: freelist.New(),
		logger:  o.logger,
		metrics: o.metrics,
	}, nil
}

// Config returns the immutable composition configuration.
func (s *Store) Config() Config {
	return s.config
}

// dualLock bundles both tiers' locks behind the single global acquisition
// order: hot before cold. Every path that needs both locks goes through
// this type, so a reordering bug cannot be introduced by one call site.
type dualLock struct {
	hot  *tier.HotTier
	cold *tier.ColdTier
}

func (d dualLock) lock() {
	d.hot.Lock()
	d.cold.Lock()
}

func (d dualLock) unlock() {
	d.cold.Unlock()
	d.hot.Unlock()
}

// Get returns the record for key, trying the hot tier first and the cold
// tier second. A plain Get never promotes; the record stays where it is.
//
// A hot hit returns the resident record, which stays owned by the tier. A
// cold hit materializes a fresh copy charged against the memory budget; the
// caller owns that copy and hands it back through Release when done.
func (s *Store) Get(key model.Key) (*record.Record, error) {
	start := time.Now()

	if rec, err := s.hot.Get(key); err == nil {
		s.metrics.RecordGet(model.TierHot, time.Since(start))
		return rec, nil
	}

	rec, err := s.cold.Get(key)
	if err == nil {
		s.metrics.RecordGet(model.TierCold, time.Since(start))
		return rec, nil
	}
	if !errors.Is(err, tier.ErrNotFound) {
		return nil, err
	}

	s.metrics.RecordGet(model.TierNone, time.Since(start))
	return nil, ErrNotFound
}

// Insert with a pre-built record is unsupported on a two-tier store: the
// coordinator has no sizing information to decide which tier should own
// the record. It always returns ErrUnsupportedOperation.
func (s *Store) Insert(key model.Key, rec *record.Record) error {
	return fmt.Errorf("%w: single-record insert on a two-tier store (use InsertSized or GetOrCreate)", ErrUnsupportedOperation)
}

// InsertSized allocates a zeroed record of the given payload size directly
// in the hot tier and returns it.
func (s *Store) InsertSized(key model.Key, size int) (*record.Record, error) {
	rec, err := s.hot.Create(key, size)
	s.metrics.RecordCreate(size, err)
	return rec, err
}

// GetOrCreate returns the record for key, creating it in the hot tier if it
// is absent everywhere.
//
// If the record is cold-resident it is promoted: the cold copy is read and
// try-inserted into the hot tier. When a concurrent caller promoted the
// same key first, the copy just read is discarded and the resident hot copy
// wins — at most one live allocation ever exists per key. The stale
// cold-tier row is left for the cold tier's own compaction.
func (s *Store) GetOrCreate(key model.Key, size int) (*record.Record, error) {
	if rec, err := s.hot.Get(key); err == nil {
		return rec, nil
	}

	rec, err := s.cold.Get(key)
	switch {
	case err == nil:
		if terr := s.hot.TryInsert(key, rec); terr == nil {
			s.metrics.RecordPromotion(true)
			s.logger.LogPromotion(key, true)
			return rec, nil
		} else if !errors.Is(terr, tier.ErrAlreadyExists) {
			rec.Destroy(s.cold.Allocator())
			return nil, terr
		}

		// Promotion race lost: another goroutine already re-created
		// the key in the hot tier. Its copy is authoritative.
		rec.Destroy(s.cold.Allocator())
		s.metrics.RecordPromotion(false)
		s.logger.LogPromotion(key, false)

		winner, gerr := s.hot.Get(key)
		if gerr != nil {
			// The winner was removed or evicted in the meantime;
			// report absence rather than resurrecting the record.
			return nil, ErrNotFound
		}
		return winner, nil

	case errors.Is(err, tier.ErrNotFound):
		rec, cerr := s.hot.Create(key, size)
		s.metrics.RecordCreate(size, cerr)
		return rec, cerr

	default:
		return nil, err
	}
}

// Remove deletes key from both tiers. Per-tier "not found" is not an
// error: the operation's contract is the end state, absence everywhere.
// The hot copy, if any, is parked for deferred destruction since lock-free
// readers may still hold a handle; its bytes stay charged against the
// memory budget until the retire list drains at the next
// EvictWithDelayedDestroy pass or at Close.
func (s *Store) Remove(key model.Key) error {
	start := time.Now()

	if rec, err := s.hot.Detach(key); err == nil {
		s.retired.Park(rec)
	}

	if err := s.cold.Remove(key); err != nil && !errors.Is(err, tier.ErrNotFound) {
		return err
	}

	s.metrics.RecordRemove(time.Since(start))
	return nil
}

// LookupTier reports which tier currently holds key. Used for diagnostics
// and tiering tests.
func (s *Store) LookupTier(key model.Key) model.Tier {
	if s.hot.Contains(key) {
		return model.TierHot
	}
	if s.cold.Contains(key) {
		return model.TierCold
	}
	return model.TierNone
}

// Len returns the total number of resident keys across both tiers. A key
// whose stale cold copy survives a promotion is counted in both tiers
// until cold compaction catches up.
func (s *Store) Len() int {
	return s.hot.Len() + s.cold.Len()
}

// TierLen returns the number of keys resident in the given tier, or -1 for
// an unknown tier identifier.
func (s *Store) TierLen(t model.Tier) int {
	switch t {
	case model.TierHot:
		return s.hot.Len()
	case model.TierCold:
		return s.cold.Len()
	default:
		return -1
	}
}

// Snapshot returns the concatenation of the hot tier's snapshot and the
// cold tier's snapshot, hot first, each gathered under that tier's own
// lock in sequence. The combined listing is explicitly not atomic across
// tiers: mutations in the gap between the two phases may appear in one
// listing, the other, or neither. This relaxed contract is intentional;
// it is what checkpointing needs and no more.
//
// The hot-tier entries are the resident records; the cold-tier entries are
// materialized copies owned by the caller, to be handed back through
// Release.
func (s *Store) Snapshot() ([]model.Key, []*record.Record, error) {
	hKeys, hRecs, err := s.hot.Snapshot()
	if err != nil {
		return nil, nil, err
	}

	cKeys, cRecs, err := s.cold.Snapshot()
	if err != nil {
		return nil, nil, err
	}

	keys := append(hKeys, cKeys...)
	recs := append(hRecs, cRecs...)
	return keys, recs, nil
}

// BulkInsert loads keys with their payloads straight into the hot tier,
// fanning out across goroutines. Payload bytes are copied into
// allocator-backed buffers. A key that already exists fails its insert
// with tier.ErrAlreadyExists; the remaining inserts still run.
func (s *Store) BulkInsert(ctx context.Context, keys []model.Key, payloads [][]byte) error {
	if len(keys) != len(payloads) {
		return fmt.Errorf("tierstore: bulk insert: %d keys but %d payloads", len(keys), len(payloads))
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(bulkInsertConcurrency)

	for i := range keys {
		i := i
		g.Go(func() error {
			rec, err := record.NewSized(s.alloc, len(payloads[i]))
			if err != nil {
				return err
			}
			copy(rec.Payload(), payloads[i])

			if err := s.hot.TryInsert(keys[i], rec); err != nil {
				rec.Destroy(s.alloc)
				return fmt.Errorf("tierstore: bulk insert key %d: %w", keys[i], err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Evict migrates each hot-resident candidate to the cold tier. The commit
// happens strictly before the hot copy is unlinked, so a crash at any
// point leaves at least one valid copy recoverable. The hot copy is then
// destroyed immediately; use EvictWithDelayedDestroy when lock-free
// readers may still hold handles.
//
// A commit failure panics with *ErrCommitFailed: continuing would silently
// lose the only durable copy of the record.
func (s *Store) Evict(keys []model.Key) error {
	start := time.Now()

	var (
		moved int
		bytes int64
	)
	for _, key := range keys {
		rec, err := s.hot.Get(key)
		if err != nil {
			continue
		}

		s.mustCommit(key, rec)

		if detached, err := s.hot.Detach(key); err == nil {
			bytes += int64(detached.Len())
			detached.Destroy(s.alloc)
			moved++
		}
	}

	s.metrics.RecordEviction(moved, bytes, time.Since(start))
	s.logger.LogEviction(len(keys), moved, 0, time.Since(start))
	return nil
}

// EvictWithDelayedDestroy migrates candidates like Evict, but runs under
// both tiers' locks (hot acquired before cold) and parks the evicted hot
// copies on a retire list instead of destroying them. Previously parked
// records are released first: with both locks held, no reader can still be
// traversing a handle that predates the last pass.
func (s *Store) EvictWithDelayedDestroy(keys []model.Key) error {
	_, _, err := s.evictDelayed(keys)
	return err
}

func (s *Store) evictDelayed(keys []model.Key) (moved int, bytes int64, err error) {
	start := time.Now()

	dl := dualLock{hot: s.hot, cold: s.cold}
	dl.lock()
	defer dl.unlock()

	released := s.retired.Release(s.alloc)

	for _, key := range keys {
		rec, gerr := s.hot.Get(key)
		if gerr != nil {
			continue
		}

		s.mustCommitLocked(key, rec)

		if detached, derr := s.hot.Detach(key); derr == nil {
			bytes += int64(detached.Len())
			s.retired.Park(detached)
			moved++
		}
	}

	s.metrics.RecordEviction(moved, bytes, time.Since(start))
	s.logger.LogEviction(len(keys), moved, moved, time.Since(start))
	if released > 0 {
		s.logger.Debug("retire list drained", "released", released)
	}
	return moved, bytes, nil
}

func (s *Store) mustCommit(key model.Key, rec *record.Record) {
	if err := s.cold.Commit(key, rec); err != nil {
		s.logger.Error("durable commit failed during eviction", "key", int64(key), "error", err)
		panic(&ErrCommitFailed{Key: int64(key), cause: err})
	}
}

func (s *Store) mustCommitLocked(key model.Key, rec *record.Record) {
	if err := s.cold.CommitLocked(key, rec); err != nil {
		s.logger.Error("durable commit failed during eviction", "key", int64(key), "error", err)
		panic(&ErrCommitFailed{Key: int64(key), cause: err})
	}
}

// Shrink forwards a best-effort capacity/compaction hint to both tiers.
// It never fails.
func (s *Store) Shrink(hint model.ShrinkHint) {
	s.hot.Shrink(hint)
	s.cold.Shrink(hint)
}

// LockColdIterator acquires the cold tier's mutex on behalf of an external
// caller that needs to stream a cold iterator across a multi-step
// operation. It must be paired with UnlockColdIterator.
func (s *Store) LockColdIterator() {
	s.cold.Lock()
}

// UnlockColdIterator releases the cold tier's mutex.
func (s *Store) UnlockColdIterator() {
	s.cold.Unlock()
}

// UsesFastMemoryTier reports that this composition includes an in-memory
// hot tier. It is a constant property of the composition, not runtime
// state.
func (s *Store) UsesFastMemoryTier() bool { return true }

// IsSingleTierFastMemory reports whether the composition is memory-only.
// It is always false for the two-tier store.
func (s *Store) IsSingleTierFastMemory() bool { return false }

// UsesDurableStorage reports that this composition includes a durable
// tier.
func (s *Store) UsesDurableStorage() bool { return true }

// Release destroys a record that was materialized out of the store (a
// cold-tier Get, snapshot or iterator copy) and returns its bytes to the
// memory budget. Records still resident in a tier must never be passed
// here.
func (s *Store) Release(rec *record.Record) {
	rec.Destroy(s.alloc)
}

// MemoryUsage returns the bytes currently charged against the hot-tier
// payload budget.
func (s *Store) MemoryUsage() int64 {
	return s.rc.MemoryUsage()
}

// Close drains the retire list and releases the cold tier. The store must
// not be used afterwards.
func (s *Store) Close() error {
	s.retired.Release(s.alloc)
	return s.cold.Close()
}
