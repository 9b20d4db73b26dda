package mem

import (
	"fmt"
	"unsafe"

	"github.com/hupe1980/tierstore/resource"
)

// Alignment is the byte alignment of allocated payload buffers (64 bytes,
// AVX-512 friendly).
const Alignment = 64

// Allocator provides and reclaims record payload buffers.
// Implementations must be safe for concurrent use.
type Allocator interface {
	// Allocate returns a zeroed buffer of exactly size bytes.
	Allocate(size int) ([]byte, error)

	// Free returns a buffer obtained from Allocate. The buffer must not
	// be used afterwards.
	Free(buf []byte)
}

// AlignedAllocator allocates 64-byte aligned buffers from the Go heap.
// Free is an accounting no-op; the garbage collector reclaims the memory.
type AlignedAllocator struct{}

// NewAlignedAllocator creates a new AlignedAllocator.
func NewAlignedAllocator() *AlignedAllocator {
	return &AlignedAllocator{}
}

// Allocate returns a zeroed, 64-byte aligned buffer of the given size.
func (a *AlignedAllocator) Allocate(size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("mem: invalid allocation size %d", size)
	}
	return allocAligned(size), nil
}

// Free implements Allocator. The buffer is handed back to the garbage
// collector.
func (a *AlignedAllocator) Free(buf []byte) {}

// allocAligned allocates a byte slice of the given size with 64-byte
// alignment. It over-allocates by Alignment bytes and returns the slice
// starting at the first aligned offset; the underlying array is kept alive
// by the returned slice.
func allocAligned(size int) []byte {
	if size == 0 {
		return nil
	}

	buf := make([]byte, size+Alignment)

	ptr := unsafe.Pointer(&buf[0]) //nolint:gosec // required for alignment math
	addr := uintptr(ptr)
	offset := (Alignment - (addr & (Alignment - 1))) & (Alignment - 1)

	return buf[offset : offset+uintptr(size)]
}

// TrackedAllocator wraps an Allocator and charges every live buffer against
// a resource.Controller memory budget. Allocate fails once the budget is
// exhausted; Free returns the bytes to the budget.
type TrackedAllocator struct {
	inner Allocator
	rc    *resource.Controller
}

// NewTrackedAllocator creates a TrackedAllocator. A nil controller disables
// tracking.
func NewTrackedAllocator(inner Allocator, rc *resource.Controller) *TrackedAllocator {
	return &TrackedAllocator{inner: inner, rc: rc}
}

// Allocate reserves size bytes from the budget, then allocates.
func (a *TrackedAllocator) Allocate(size int) ([]byte, error) {
	if err := a.rc.AcquireMemory(int64(size)); err != nil {
		return nil, fmt.Errorf("mem: allocate %d bytes: %w", size, err)
	}
	buf, err := a.inner.Allocate(size)
	if err != nil {
		a.rc.ReleaseMemory(int64(size))
		return nil, err
	}
	return buf, nil
}

// Free releases the buffer and returns its bytes to the budget.
func (a *TrackedAllocator) Free(buf []byte) {
	a.inner.Free(buf)
	a.rc.ReleaseMemory(int64(len(buf)))
}
