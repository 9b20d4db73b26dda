package record

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/tierstore/mem"
)

// Binary layout (little-endian):
//
//	[Version: 8 bytes] [Freq: 8 bytes] [Payload...]
const headerSize = 16

// ErrShortBuffer indicates an encoded record too small to hold the header.
var ErrShortBuffer = fmt.Errorf("record: encoded buffer shorter than %d-byte header", headerSize)

// Marshal encodes the record for durable storage.
func (r *Record) Marshal() []byte {
	buf := make([]byte, headerSize+len(r.payload))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(r.version.Load()))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(r.freq.Load()))
	copy(buf[headerSize:], r.payload)
	return buf
}

// Unmarshal decodes an encoded record, allocating the payload from alloc.
func Unmarshal(data []byte, alloc mem.Allocator) (*Record, error) {
	if len(data) < headerSize {
		return nil, ErrShortBuffer
	}

	payload, err := alloc.Allocate(len(data) - headerSize)
	if err != nil {
		return nil, err
	}
	copy(payload, data[headerSize:])

	r := &Record{payload: payload}
	r.version.Store(int64(binary.LittleEndian.Uint64(data[0:8])))
	r.freq.Store(int64(binary.LittleEndian.Uint64(data[8:16])))
	return r, nil
}
