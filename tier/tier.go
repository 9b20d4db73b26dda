package tier

import (
	"errors"

	"github.com/hupe1980/tierstore/model"
	"github.com/hupe1980/tierstore/record"
)

var (
	// ErrNotFound is returned when a tier does not hold the requested key.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned by TryInsert when the key is already
	// resident. The insert has no side effect in that case.
	ErrAlreadyExists = errors.New("already exists")
)

// Tier is the contract every storage level implements. All operations are
// safe to call concurrently per the tier's own locking discipline; callers
// must not assume any atomicity across two tiers.
type Tier interface {
	// Get returns the record for key, or ErrNotFound.
	Get(key model.Key) (*record.Record, error)

	// Insert stores the record unconditionally, replacing any resident
	// copy.
	Insert(key model.Key, rec *record.Record) error

	// TryInsert stores the record only if the key is absent. It fails
	// with ErrAlreadyExists otherwise; exactly one of any set of
	// concurrent TryInserts for the same key wins.
	TryInsert(key model.Key, rec *record.Record) error

	// Remove unlinks the key, or returns ErrNotFound. Removal does not
	// free the record's buffer; destruction timing is the coordinator's
	// business.
	Remove(key model.Key) error

	// Contains reports whether the key is resident.
	Contains(key model.Key) bool

	// Len returns the number of resident keys.
	Len() int

	// Snapshot returns all resident entries in ascending key order,
	// gathered under the tier's lock.
	Snapshot() ([]model.Key, []*record.Record, error)

	// Shrink applies a best-effort capacity/compaction hint. It never
	// fails the caller.
	Shrink(hint model.ShrinkHint)
}
