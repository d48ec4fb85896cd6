package escrow

import "errors"

var (
	// ErrAuthorization is returned when the most recent request between a
	// doctor and a patient is not granted.
	ErrAuthorization = errors.New("access not granted")

	// ErrMissingMetadata reports a record that cannot be opened: no IV,
	// original name or type, or no stored key.
	ErrMissingMetadata = errors.New("record has no encryption metadata")

	ErrRecordNotFound  = errors.New("record not found")
	ErrRequestNotFound = errors.New("access request not found")
)
