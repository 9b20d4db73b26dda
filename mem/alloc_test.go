package mem

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tierstore/resource"
)

func TestAlignedAllocator(t *testing.T) {
	alloc := NewAlignedAllocator()

	for _, size := range []int{1, 63, 64, 65, 4096} {
		buf, err := alloc.Allocate(size)
		require.NoError(t, err)
		require.Len(t, buf, size)

		addr := uintptr(unsafe.Pointer(&buf[0]))
		assert.Zero(t, addr&(Alignment-1), "allocation of %d bytes not %d-byte aligned", size, Alignment)

		for _, b := range buf {
			require.Zero(t, b)
		}
		alloc.Free(buf)
	}
}

func TestAlignedAllocatorZeroAndNegative(t *testing.T) {
	alloc := NewAlignedAllocator()

	buf, err := alloc.Allocate(0)
	require.NoError(t, err)
	assert.Nil(t, buf)

	_, err = alloc.Allocate(-1)
	assert.Error(t, err)
}

func TestTrackedAllocatorBudget(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 128})
	alloc := NewTrackedAllocator(NewAlignedAllocator(), rc)

	a, err := alloc.Allocate(64)
	require.NoError(t, err)
	assert.Equal(t, int64(64), rc.MemoryUsage())

	b, err := alloc.Allocate(64)
	require.NoError(t, err)
	assert.Equal(t, int64(128), rc.MemoryUsage())

	_, err = alloc.Allocate(1)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)

	alloc.Free(a)
	assert.Equal(t, int64(64), rc.MemoryUsage())

	c, err := alloc.Allocate(32)
	require.NoError(t, err)

	alloc.Free(b)
	alloc.Free(c)
	assert.Zero(t, rc.MemoryUsage())
}
