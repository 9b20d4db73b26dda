package tierstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a key is resident in neither tier.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedOperation is returned for operations the two-tier
	// composition cannot honor, such as inserting a pre-built record
	// without sizing information.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// ErrCommitFailed carries the cause of a failed durable commit during
// eviction. It is used as a panic value: once the coordinator has decided to
// migrate a record, a commit failure would leave the record's only copy
// undurable, which is not a state this engine continues from.
//
// The underlying persistence error can be accessed via errors.Unwrap.
type ErrCommitFailed struct {
	Key   int64
	cause error
}

func (e *ErrCommitFailed) Error() string {
	return fmt.Sprintf("commit of key %d during eviction failed: %v", e.Key, e.cause)
}

func (e *ErrCommitFailed) Unwrap() error { return e.cause }
