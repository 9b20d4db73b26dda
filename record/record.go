package record

import (
	"sync/atomic"

	"github.com/hupe1980/tierstore/mem"
)

// Record is the unit of storage: a variable-length payload buffer (the
// embedding vector, in whatever layout the caller uses) plus bookkeeping
// metadata. The metadata counters are updated with atomics so concurrent
// readers holding a handle never race with writers.
//
// A record is owned by exactly one tier at any observable instant; the
// coordinator, not the tier, decides when the backing buffer is freed.
type Record struct {
	version atomic.Int64
	freq    atomic.Int64
	payload []byte
}

// New wraps an existing payload buffer in a Record.
func New(payload []byte) *Record {
	return &Record{payload: payload}
}

// NewSized allocates a zeroed payload of the given size from alloc.
func NewSized(alloc mem.Allocator, size int) (*Record, error) {
	buf, err := alloc.Allocate(size)
	if err != nil {
		return nil, err
	}
	return &Record{payload: buf}, nil
}

// Payload returns the record's payload buffer. The buffer is owned by the
// record; callers must not retain it past the record's destruction.
func (r *Record) Payload() []byte {
	return r.payload
}

// Len returns the payload length in bytes.
func (r *Record) Len() int {
	return len(r.payload)
}

// Version returns the version counter.
func (r *Record) Version() int64 {
	return r.version.Load()
}

// SetVersion sets the version counter.
func (r *Record) SetVersion(v int64) {
	r.version.Store(v)
}

// BumpVersion increments the version counter and returns the new value.
func (r *Record) BumpVersion() int64 {
	return r.version.Add(1)
}

// Freq returns the access-frequency counter.
func (r *Record) Freq() int64 {
	return r.freq.Load()
}

// SetFreq sets the access-frequency counter.
func (r *Record) SetFreq(f int64) {
	r.freq.Store(f)
}

// Touch increments the access-frequency counter and returns the new value.
func (r *Record) Touch() int64 {
	return r.freq.Add(1)
}

// Destroy returns the payload buffer to alloc. The record must not be used
// afterwards.
func (r *Record) Destroy(alloc mem.Allocator) {
	if r == nil || r.payload == nil {
		return
	}
	alloc.Free(r.payload)
	r.payload = nil
}
