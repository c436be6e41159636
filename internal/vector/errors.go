package vector

import "errors"

var (
	// ErrNotBuilt is returned when search, add, optimize, or save is attempted
	// on an index that has never been built or loaded.
	ErrNotBuilt = errors.New("vector index not built")

	// ErrNeedsRebuild signals that an incremental add would exceed the rebuild
	// threshold. It is a sentinel, not a failure: the index is untouched and
	// the caller must rebuild with the union of old and new records.
	ErrNeedsRebuild = errors.New("incremental add exceeds rebuild threshold: full rebuild required")

	// ErrDimensionMismatch is returned when a query or added vector's width
	// differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
