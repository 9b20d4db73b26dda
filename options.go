package tierstore

import (
	"github.com/hupe1980/tierstore/mem"
)

// Config is the immutable composition configuration of a Store. It is
// resolved once from the options passed to Open and is read-only
// thereafter.
type Config struct {
	// Path is the location of the cold tier's database file.
	Path string

	// MemoryLimitBytes caps the hot tier's payload budget (0 = track
	// only).
	MemoryLimitBytes int64

	// EvictionIOBytesPerSec caps background eviction throughput
	// (0 = unlimited).
	EvictionIOBytesPerSec int64

	// BloomCapacity and BloomFPRate size the cold tier's negative-lookup
	// filter.
	BloomCapacity uint
	BloomFPRate   float64
}

type options struct {
	logger  *Logger
	metrics MetricsCollector
	alloc   mem.Allocator
	config  Config
}

// Option configures Store construction behavior.
type Option func(*options)

// WithLogger configures structured logging. If nil is passed, logging is
// disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithAllocator configures the allocator backing record payloads. The
// store wraps it with memory-budget tracking; callers keep ownership of
// the underlying allocation strategy.
func WithAllocator(a mem.Allocator) Option {
	return func(o *options) {
		if a == nil {
			a = mem.NewAlignedAllocator()
		}
		o.alloc = a
	}
}

// WithMemoryLimit caps the hot tier's payload budget in bytes. Allocations
// beyond the budget fail with resource.ErrMemoryLimitExceeded; callers are
// expected to evict and retry.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.config.MemoryLimitBytes = bytes
	}
}

// WithEvictionIOLimit caps the throughput of background eviction in bytes
// per second.
func WithEvictionIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.config.EvictionIOBytesPerSec = bytesPerSec
	}
}

// WithBloom sizes the cold tier's negative-lookup filter: the expected
// number of cold-resident keys and the target false-positive rate.
func WithBloom(capacity uint, fpRate float64) Option {
	return func(o *options) {
		o.config.BloomCapacity = capacity
		o.config.BloomFPRate = fpRate
	}
}
