package tierstore

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/tierstore/model"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordGet is called after each lookup. tier is where the record
	// was found (model.TierNone on a miss).
	RecordGet(tier model.Tier, duration time.Duration)

	// RecordCreate is called after each allocation of a fresh hot
	// record. err is nil if successful.
	RecordCreate(size int, err error)

	// RecordPromotion is called after each cold-to-hot promotion
	// attempt. won is false when a concurrent promotion got there first.
	RecordPromotion(won bool)

	// RecordEviction is called after each eviction pass. moved is the
	// number of records migrated to the cold tier.
	RecordEviction(moved int, bytes int64, duration time.Duration)

	// RecordRemove is called after each removal.
	RecordRemove(duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordGet(model.Tier, time.Duration)      {}
func (NoopMetricsCollector) RecordCreate(int, error)                  {}
func (NoopMetricsCollector) RecordPromotion(bool)                     {}
func (NoopMetricsCollector) RecordEviction(int, int64, time.Duration) {}
func (NoopMetricsCollector) RecordRemove(time.Duration)               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	HotHits        atomic.Int64
	ColdHits       atomic.Int64
	Misses         atomic.Int64
	Creates        atomic.Int64
	CreateErrors   atomic.Int64
	PromotionsWon  atomic.Int64
	PromotionsLost atomic.Int64
	Evicted        atomic.Int64
	EvictedBytes   atomic.Int64
	Removes        atomic.Int64
}

func (m *BasicMetricsCollector) RecordGet(tier model.Tier, _ time.Duration) {
	switch tier {
	case model.TierHot:
		m.HotHits.Add(1)
	case model.TierCold:
		m.ColdHits.Add(1)
	default:
		m.Misses.Add(1)
	}
}

func (m *BasicMetricsCollector) RecordCreate(_ int, err error) {
	m.Creates.Add(1)
	if err != nil {
		m.CreateErrors.Add(1)
	}
}

func (m *BasicMetricsCollector) RecordPromotion(won bool) {
	if won {
		m.PromotionsWon.Add(1)
	} else {
		m.PromotionsLost.Add(1)
	}
}

func (m *BasicMetricsCollector) RecordEviction(moved int, bytes int64, _ time.Duration) {
	m.Evicted.Add(int64(moved))
	m.EvictedBytes.Add(bytes)
}

func (m *BasicMetricsCollector) RecordRemove(_ time.Duration) {
	m.Removes.Add(1)
}
