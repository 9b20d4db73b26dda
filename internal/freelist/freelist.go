// Package freelist provides the retire list used for deferred record
// destruction.
//
// The hot tier's lock-free readers may hold a record handle after the key
// has been unlinked; freeing the buffer synchronously with removal would
// let such a reader dereference reclaimed memory. Evicted records are
// instead parked here and released in a batch at the next safe point.
package freelist

import (
	"sync"

	"github.com/hupe1980/tierstore/mem"
	"github.com/hupe1980/tierstore/record"
)

// List is a retire list of records awaiting destruction.
type List struct {
	mu      sync.Mutex
	pending []*record.Record
}

// New creates an empty retire list.
func New() *List {
	return &List{}
}

// Park defers destruction of rec until the next Release.
func (l *List) Park(rec *record.Record) {
	if rec == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, rec)
}

// Release destroys every parked record through alloc and returns how many
// were freed. Callers must ensure no reader can still hold a handle to a
// parked record; in practice that means calling it under the same locks
// that made the original removals visible.
func (l *List) Release(alloc mem.Allocator) int {
	l.mu.Lock()
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, rec := range pending {
		rec.Destroy(alloc)
	}
	return len(pending)
}

// Len returns the number of parked records.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.pending)
}
