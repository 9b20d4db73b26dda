package tier

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/tierstore/mem"
	"github.com/hupe1980/tierstore/model"
	"github.com/hupe1980/tierstore/record"
)

// HotTier is the in-memory level, backed by a sync.Map so point reads and
// writes proceed without tier-wide locking. A reader may hold a record
// handle obtained from Get after the key has been unlinked; for that reason
// Remove and Detach never free the record's buffer.
//
// The embedded mutex serializes only structural bulk operations (Snapshot,
// and the coordinator's dual-lock eviction path); point operations never
// take it.
type HotTier struct {
	mu    sync.Mutex
	m     sync.Map // model.Key -> *record.Record
	count atomic.Int64
	alloc mem.Allocator
}

// compile-time interface check
var _ Tier = (*HotTier)(nil)

// NewHotTier creates a hot tier. Fresh records created through Create are
// allocated from alloc.
func NewHotTier(alloc mem.Allocator) *HotTier {
	return &HotTier{alloc: alloc}
}

// Lock acquires the tier's structural mutex. It is exported for the
// coordinator's dual-lock paths, which must take this lock before the cold
// tier's.
func (h *HotTier) Lock() { h.mu.Lock() }

// Unlock releases the tier's structural mutex.
func (h *HotTier) Unlock() { h.mu.Unlock() }

// Get returns the resident record for key, or ErrNotFound.
func (h *HotTier) Get(key model.Key) (*record.Record, error) {
	v, ok := h.m.Load(key)
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*record.Record), nil
}

// Insert stores rec unconditionally, replacing any resident copy. The
// replaced record, if any, is not destroyed.
func (h *HotTier) Insert(key model.Key, rec *record.Record) error {
	if _, loaded := h.m.Swap(key, rec); !loaded {
		h.count.Add(1)
	}
	return nil
}

// TryInsert stores rec only if key is absent. Exactly one concurrent
// TryInsert for the same key wins; losers get ErrAlreadyExists and rec is
// untouched.
func (h *HotTier) TryInsert(key model.Key, rec *record.Record) error {
	if _, loaded := h.m.LoadOrStore(key, rec); loaded {
		return ErrAlreadyExists
	}
	h.count.Add(1)
	return nil
}

// Create allocates a zeroed record of the given payload size and
// try-inserts it. If another goroutine created the key concurrently, the
// fresh allocation is freed and the resident record returned, so at most
// one live allocation ever exists per key.
func (h *HotTier) Create(key model.Key, size int) (*record.Record, error) {
	rec, err := record.NewSized(h.alloc, size)
	if err != nil {
		return nil, err
	}

	if v, loaded := h.m.LoadOrStore(key, rec); loaded {
		rec.Destroy(h.alloc)
		return v.(*record.Record), nil
	}

	h.count.Add(1)
	return rec, nil
}

// Remove unlinks the key. The record's buffer stays valid for readers that
// already hold a handle.
func (h *HotTier) Remove(key model.Key) error {
	_, err := h.Detach(key)
	return err
}

// Detach unlinks the key and hands its record to the caller, which becomes
// responsible for destroying it at a safe point.
func (h *HotTier) Detach(key model.Key) (*record.Record, error) {
	v, loaded := h.m.LoadAndDelete(key)
	if !loaded {
		return nil, ErrNotFound
	}
	h.count.Add(-1)
	return v.(*record.Record), nil
}

// Contains reports whether the key is resident.
func (h *HotTier) Contains(key model.Key) bool {
	_, ok := h.m.Load(key)
	return ok
}

// Len returns the number of resident keys.
func (h *HotTier) Len() int {
	return int(h.count.Load())
}

// Allocator returns the allocator backing this tier's records.
func (h *HotTier) Allocator() mem.Allocator {
	return h.alloc
}

// Snapshot returns all resident entries in ascending key order. It holds
// the structural mutex for the duration, so it is consistent with respect
// to the dual-lock eviction path but not with respect to concurrent point
// writes.
func (h *HotTier) Snapshot() ([]model.Key, []*record.Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.snapshotLocked()
}

// SnapshotLocked is Snapshot for callers that already hold the structural
// mutex.
func (h *HotTier) SnapshotLocked() ([]model.Key, []*record.Record, error) {
	return h.snapshotLocked()
}

func (h *HotTier) snapshotLocked() ([]model.Key, []*record.Record, error) {
	type kv struct {
		k model.Key
		r *record.Record
	}

	entries := make([]kv, 0, h.Len())
	h.m.Range(func(k, v any) bool {
		entries = append(entries, kv{k.(model.Key), v.(*record.Record)})
		return true
	})

	sort.Slice(entries, func(i, j int) bool { return entries[i].k < entries[j].k })

	keys := make([]model.Key, len(entries))
	recs := make([]*record.Record, len(entries))
	for i, e := range entries {
		keys[i] = e.k
		recs[i] = e.r
	}
	return keys, recs, nil
}

// Shrink is a no-op for the hot tier; capacity is reclaimed through
// eviction, not compaction.
func (h *HotTier) Shrink(hint model.ShrinkHint) {}
