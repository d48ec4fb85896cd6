package record

import "errors"

var (
	ErrNotFound        = errors.New("record not found")
	ErrForbidden       = errors.New("record access denied")
	ErrInvalidCategory = errors.New("invalid record category")
	// ErrIncompleteMetadata rejects uploads carrying only part of the
	// IV, original name and original type, or a key without them.
	ErrIncompleteMetadata = errors.New("encryption metadata must be complete")
	ErrEmptyFile          = errors.New("empty file")
	ErrTooLarge           = errors.New("file exceeds upload limit")
)
