package repo

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrConflict reports a unique constraint violation.
	ErrConflict = errors.New("conflict")

	// ErrStaleState is returned by conditional updates that matched no row:
	// the row is gone or is no longer in the expected state.
	ErrStaleState = errors.New("row not in expected state")
)
