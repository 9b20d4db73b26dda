// Package mem provides the record-buffer allocator consumed by the storage
// tiers.
//
// # Aligned Allocation
//
// The default allocator returns 64-byte aligned buffers (AVX-512 friendly),
// so embedding kernels can operate on record payloads without copying.
package mem
