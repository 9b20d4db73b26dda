package record

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tierstore/mem"
)

func TestRecordMetadata(t *testing.T) {
	rec := New([]byte{1, 2, 3, 4})

	assert.Equal(t, 4, rec.Len())
	assert.Equal(t, int64(0), rec.Version())
	assert.Equal(t, int64(0), rec.Freq())

	rec.SetVersion(7)
	assert.Equal(t, int64(7), rec.Version())
	assert.Equal(t, int64(8), rec.BumpVersion())

	assert.Equal(t, int64(1), rec.Touch())
	assert.Equal(t, int64(2), rec.Touch())
	rec.SetFreq(100)
	assert.Equal(t, int64(100), rec.Freq())
}

func TestRecordConcurrentCounters(t *testing.T) {
	rec := New(make([]byte, 8))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				rec.Touch()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(8000), rec.Freq())
}

func TestRecordMarshalRoundtrip(t *testing.T) {
	alloc := mem.NewAlignedAllocator()

	rec := New([]byte("embedding-bytes"))
	rec.SetVersion(42)
	rec.SetFreq(9)

	got, err := Unmarshal(rec.Marshal(), alloc)
	require.NoError(t, err)

	assert.Equal(t, []byte("embedding-bytes"), got.Payload())
	assert.Equal(t, int64(42), got.Version())
	assert.Equal(t, int64(9), got.Freq())
}

func TestRecordMarshalEmptyPayload(t *testing.T) {
	alloc := mem.NewAlignedAllocator()

	got, err := Unmarshal(New(nil).Marshal(), alloc)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestUnmarshalShortBuffer(t *testing.T) {
	alloc := mem.NewAlignedAllocator()

	_, err := Unmarshal([]byte{1, 2, 3}, alloc)
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestRecordDestroy(t *testing.T) {
	alloc := mem.NewAlignedAllocator()

	rec, err := NewSized(alloc, 32)
	require.NoError(t, err)
	require.Equal(t, 32, rec.Len())

	rec.Destroy(alloc)
	assert.Equal(t, 0, rec.Len())

	// Idempotent, including on nil receivers.
	rec.Destroy(alloc)
	(*Record)(nil).Destroy(alloc)
}
