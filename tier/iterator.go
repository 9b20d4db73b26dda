package tier

import (
	"database/sql"
	"fmt"

	"github.com/hupe1980/tierstore/model"
	"github.com/hupe1980/tierstore/record"
)

// Iterator is a lazy, forward-only cursor over all cold-resident entries in
// ascending key order. It can be restarted from the first key with Reset.
//
// The caller must hold the cold tier's mutex (ColdTier.Lock) for the
// iterator's entire lifetime and must Close it before releasing the mutex.
type Iterator struct {
	ct   *ColdTier
	rows *sql.Rows
	key  model.Key
	val  []byte
	err  error
}

// NewIterator opens a cursor over the tier. The caller must already hold
// the tier mutex.
func (c *ColdTier) NewIterator() (*Iterator, error) {
	it := &Iterator{ct: c}
	if err := it.Reset(); err != nil {
		return nil, err
	}
	return it, nil
}

// Reset restarts the cursor from the first key.
func (it *Iterator) Reset() error {
	if it.rows != nil {
		if err := it.rows.Close(); err != nil {
			return fmt.Errorf("cold tier: iterator reset: %w", err)
		}
	}

	rows, err := it.ct.db.Query(`SELECT key, value FROM records ORDER BY key ASC`)
	if err != nil {
		return fmt.Errorf("cold tier: iterator: %w", err)
	}

	it.rows = rows
	it.err = nil
	return nil
}

// Next advances to the next entry. It returns false when the cursor is
// exhausted or a read failed; check Err afterwards.
func (it *Iterator) Next() bool {
	if it.err != nil || it.rows == nil {
		return false
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false
	}

	var k int64
	if err := it.rows.Scan(&k, &it.val); err != nil {
		it.err = fmt.Errorf("cold tier: iterator scan: %w", err)
		return false
	}
	it.key = model.Key(k)
	return true
}

// Key returns the key at the cursor position.
func (it *Iterator) Key() model.Key {
	return it.key
}

// Record decodes and returns the record at the cursor position. Each call
// materializes a fresh record from the tier's allocator.
func (it *Iterator) Record() (*record.Record, error) {
	return it.ct.decode(it.val)
}

// Err returns the first error encountered during iteration.
func (it *Iterator) Err() error {
	return it.err
}

// Close releases the cursor. The tier mutex may be released afterwards.
func (it *Iterator) Close() error {
	if it.rows == nil {
		return nil
	}
	err := it.rows.Close()
	it.rows = nil
	return err
}
