// Package tierstore provides a two-tier storage engine for fixed-identity,
// variable-length embedding records.
//
// Hot records live in a lock-minimized in-memory tier; cold records are
// migrated under memory pressure to a durable, SQLite-backed tier with
// zstd-compressed payloads. The Store coordinator presents one coherent
// view of a key's location across both tiers and guarantees at most one
// live copy of a record system-wide.
//
// # Quick Start
//
//	st, _ := tierstore.Open("./records.db",
//	    tierstore.WithMemoryLimit(512<<20),
//	)
//	defer st.Close()
//
//	rec, _ := st.GetOrCreate(42, 4*768) // 768-dim float32 embedding
//	copy(rec.Payload(), vectorBytes)
//
//	st.Evict([]model.Key{42})           // migrate to the durable tier
//	rec, _ = st.Get(42)                  // still readable, now from disk
//
// # Tiering Semantics
//
// A key is resident in at most one tier at any externally observable
// instant. GetOrCreate promotes cold-resident records back into the hot
// tier; plain Get never does. Eviction commits the record durably before
// unlinking the hot copy, so a crash at any point leaves a recoverable
// copy.
//
// # Checkpointing
//
// CheckpointSnapshot materializes the hot tier eagerly (filtered through a
// caller-supplied eligibility predicate) and exposes the cold tier as a
// lazy iterator held open under the cold tier's lock. The combined view is
// deliberately relaxed: it is gathered tier by tier, not atomically across
// both.
package tierstore
