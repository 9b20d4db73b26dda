// Package tier provides the storage levels composed by the tierstore
// coordinator.
//
// Two implementations of the Tier contract are provided:
//
//   - HotTier: an in-memory concurrent map with lock-free point access.
//     TryInsert is atomic per key; removal never frees the record buffer,
//     because lock-free readers may still hold a handle.
//   - ColdTier: a durable SQLite-backed store with zstd-compressed payloads
//     and a bloom filter for negative lookups. One tier-wide mutex
//     serializes all structural access, including iterator lifetimes.
//
// The coordinator never assumes atomicity across the two tiers; every
// cross-tier guarantee lives in the tierstore package.
package tier
