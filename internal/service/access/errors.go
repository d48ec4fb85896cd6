package access

import "errors"

var (
	ErrNotFound        = errors.New("access request not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrNotOwner        = errors.New("only the patient can change this request")
	ErrNotDoctor       = errors.New("only doctors can request access")

	// ErrAlreadyResolved is returned by Grant and Deny once a request has
	// left the pending state, including a second Deny.
	ErrAlreadyResolved = errors.New("access request already resolved")

	// ErrInvalidTransition is returned by Revoke on a request that is not
	// currently granted.
	ErrInvalidTransition = errors.New("access request cannot be revoked in its current state")

	// ErrRequestExists is returned while a pending or granted request
	// already exists between the same doctor and patient.
	ErrRequestExists = errors.New("an open access request already exists")
)
