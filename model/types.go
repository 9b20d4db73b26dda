package model

import (
	"fmt"
)

// Key is the stable identifier of a record. Keys are assigned externally,
// totally ordered, and immutable once assigned.
type Key int64

// Tier identifies which storage level holds a record.
type Tier int

const (
	// TierNone means the key is not resident in any tier.
	TierNone Tier = iota
	// TierHot is the in-memory tier.
	TierHot
	// TierCold is the durable on-disk tier.
	TierCold
)

// String returns a string representation of the Tier.
func (t Tier) String() string {
	switch t {
	case TierHot:
		return "hot"
	case TierCold:
		return "cold"
	case TierNone:
		return "none"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ShrinkHint is a best-effort capacity/compaction hint forwarded to the
// tiers. Tiers are free to ignore it; acting on it must never fail the
// caller.
type ShrinkHint struct {
	// TargetBytes is the desired resident size after shrinking.
	// Zero means "reclaim whatever is cheap to reclaim".
	TargetBytes int64

	// Compact requests a structural compaction of the durable tier,
	// reclaiming space left behind by removals and stale promoted copies.
	Compact bool
}
