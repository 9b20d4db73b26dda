package tier

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/hupe1980/tierstore/mem"
	"github.com/hupe1980/tierstore/model"
	"github.com/hupe1980/tierstore/record"
)

// ColdOptions configure the durable tier.
type ColdOptions struct {
	// BloomCapacity is the expected number of resident keys used to size
	// the negative-lookup filter.
	BloomCapacity uint

	// BloomFPRate is the filter's target false-positive rate.
	BloomFPRate float64

	// Logger receives diagnostics; nil discards.
	Logger *slog.Logger
}

// ColdTier is the durable level, backed by an embedded SQLite database with
// one row per record (key INTEGER PRIMARY KEY, value BLOB). Payloads are
// stored zstd-compressed.
//
// The engine's write path is not assumed to be safe for concurrent
// mutation, so a single tier-wide mutex serializes every public operation.
// Iterators require the caller to hold that mutex for their entire
// lifetime; Lock and Unlock are exported for this.
//
// A bloom filter in front of the database short-circuits lookups for keys
// that were never committed. The filter is rebuilt from the key column at
// open and is not updated on Remove, so a removed key costs one extra
// SELECT until the next reopen.
type ColdTier struct {
	mu     sync.Mutex
	db     *sql.DB
	alloc  mem.Allocator
	logger *slog.Logger

	enc *zstd.Encoder
	dec *zstd.Decoder

	filter *bloom.BloomFilter
	count  int64
}

var _ Tier = (*ColdTier)(nil)

// OpenColdTier opens (creating if necessary) the durable tier at path.
// Records read back out of the tier are materialized from alloc.
func OpenColdTier(path string, alloc mem.Allocator, optFns ...func(o *ColdOptions)) (*ColdTier, error) {
	opts := ColdOptions{
		BloomCapacity: 1_000_000,
		BloomFPRate:   0.01,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cold tier: open %s: %w", path, err)
	}

	// The tier mutex already serializes access; a single connection keeps
	// the driver from opening write-contending handles.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA auto_vacuum = INCREMENTAL;
	`); err != nil {
		opts.Logger.Warn("cold tier: pragma setup failed", "error", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		key INTEGER PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("cold tier: init schema: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cold tier: init compressor: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("cold tier: init decompressor: %w", err)
	}

	c := &ColdTier{
		db:     db,
		alloc:  alloc,
		logger: opts.Logger,
		enc:    enc,
		dec:    dec,
		filter: bloom.NewWithEstimates(opts.BloomCapacity, opts.BloomFPRate),
	}

	if err := c.warmup(); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

// warmup seeds the resident count and the bloom filter from the key column.
func (c *ColdTier) warmup() error {
	rows, err := c.db.Query(`SELECT key FROM records`)
	if err != nil {
		return fmt.Errorf("cold tier: warmup scan: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k int64
		if err := rows.Scan(&k); err != nil {
			return fmt.Errorf("cold tier: warmup scan: %w", err)
		}
		c.filter.Add(keyBytes(model.Key(k)))
		c.count++
	}
	return rows.Err()
}

func keyBytes(key model.Key) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(key))
	return b[:]
}

// Lock acquires the tier-wide mutex. Callers streaming an Iterator must
// hold it for the iterator's entire lifetime.
func (c *ColdTier) Lock() { c.mu.Lock() }

// Unlock releases the tier-wide mutex.
func (c *ColdTier) Unlock() { c.mu.Unlock() }

// Allocator returns the allocator used to materialize records read from
// this tier.
func (c *ColdTier) Allocator() mem.Allocator {
	return c.alloc
}

// Get returns the record for key, or ErrNotFound.
func (c *ColdTier) Get(key model.Key) (*record.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.getLocked(key)
}

func (c *ColdTier) getLocked(key model.Key) (*record.Record, error) {
	if !c.filter.Test(keyBytes(key)) {
		return nil, ErrNotFound
	}

	var value []byte
	err := c.db.QueryRow(`SELECT value FROM records WHERE key = ?`, int64(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cold tier: get key %d: %w", key, err)
	}

	return c.decode(value)
}

func (c *ColdTier) decode(value []byte) (*record.Record, error) {
	raw, err := c.dec.DecodeAll(value, nil)
	if err != nil {
		return nil, fmt.Errorf("cold tier: decompress: %w", err)
	}
	return record.Unmarshal(raw, c.alloc)
}

func (c *ColdTier) encode(rec *record.Record) []byte {
	return c.enc.EncodeAll(rec.Marshal(), nil)
}

// Commit durably persists the record under key, replacing any resident
// copy. This is the eviction entry point: once Commit returns nil the
// record survives a crash.
func (c *ColdTier) Commit(key model.Key, rec *record.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.commitLocked(key, rec)
}

// CommitLocked is Commit for callers that already hold the tier mutex.
func (c *ColdTier) CommitLocked(key model.Key, rec *record.Record) error {
	return c.commitLocked(key, rec)
}

func (c *ColdTier) commitLocked(key model.Key, rec *record.Record) error {
	existed, err := c.existsLocked(key)
	if err != nil {
		return err
	}

	if _, err := c.db.Exec(
		`INSERT INTO records (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		int64(key), c.encode(rec),
	); err != nil {
		return fmt.Errorf("cold tier: commit key %d: %w", key, err)
	}

	c.filter.Add(keyBytes(key))
	if !existed {
		c.count++
	}
	return nil
}

// Insert stores the record unconditionally. It is Commit under the Tier
// interface name.
func (c *ColdTier) Insert(key model.Key, rec *record.Record) error {
	return c.Commit(key, rec)
}

// TryInsert stores the record only if key is absent.
func (c *ColdTier) TryInsert(key model.Key, rec *record.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existed, err := c.existsLocked(key)
	if err != nil {
		return err
	}
	if existed {
		return ErrAlreadyExists
	}

	if _, err := c.db.Exec(`INSERT INTO records (key, value) VALUES (?, ?)`,
		int64(key), c.encode(rec)); err != nil {
		return fmt.Errorf("cold tier: insert key %d: %w", key, err)
	}

	c.filter.Add(keyBytes(key))
	c.count++
	return nil
}

func (c *ColdTier) existsLocked(key model.Key) (bool, error) {
	if !c.filter.Test(keyBytes(key)) {
		return false, nil
	}

	var one int
	err := c.db.QueryRow(`SELECT 1 FROM records WHERE key = ?`, int64(key)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cold tier: lookup key %d: %w", key, err)
	}
	return true, nil
}

// Remove deletes the key, or returns ErrNotFound. The bloom filter keeps
// the key until the next reopen; subsequent lookups pay one extra SELECT.
func (c *ColdTier) Remove(key model.Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.Exec(`DELETE FROM records WHERE key = ?`, int64(key))
	if err != nil {
		return fmt.Errorf("cold tier: remove key %d: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cold tier: remove key %d: %w", key, err)
	}
	if n == 0 {
		return ErrNotFound
	}

	c.count--
	return nil
}

// Contains reports whether the key is resident.
func (c *ColdTier) Contains(key model.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ok, err := c.existsLocked(key)
	if err != nil {
		c.logger.Warn("cold tier: contains probe failed", "key", int64(key), "error", err)
		return false
	}
	return ok
}

// Len returns the number of resident keys.
func (c *ColdTier) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return int(c.count)
}

// Snapshot returns all resident entries in ascending key order, gathered
// under the tier mutex.
func (c *ColdTier) Snapshot() ([]model.Key, []*record.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query(`SELECT key, value FROM records ORDER BY key ASC`)
	if err != nil {
		return nil, nil, fmt.Errorf("cold tier: snapshot: %w", err)
	}
	defer rows.Close()

	var (
		keys []model.Key
		recs []*record.Record
	)
	for rows.Next() {
		var (
			k     int64
			value []byte
		)
		if err := rows.Scan(&k, &value); err != nil {
			return nil, nil, fmt.Errorf("cold tier: snapshot scan: %w", err)
		}
		rec, err := c.decode(value)
		if err != nil {
			return nil, nil, err
		}
		keys = append(keys, model.Key(k))
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("cold tier: snapshot: %w", err)
	}

	return keys, recs, nil
}

// Shrink applies a best-effort compaction hint. Errors are logged, never
// returned.
func (c *ColdTier) Shrink(hint model.ShrinkHint) {
	if !hint.Compact {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec(`PRAGMA incremental_vacuum`); err != nil {
		c.logger.Warn("cold tier: incremental vacuum failed", "error", err)
	}
}

// Close releases the database handle and the shared compressor state.
func (c *ColdTier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.enc.Close()
	c.dec.Close()
	if dbErr := c.db.Close(); dbErr != nil && err == nil {
		err = dbErr
	}
	return err
}
