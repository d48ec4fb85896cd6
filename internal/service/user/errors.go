package user

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrNotPatient         = errors.New("only patients have share codes")
	ErrInvalidRole        = errors.New("role must be patient or doctor")
	ErrInvalidName        = errors.New("full name must be between 1 and 200 characters")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidPhone       = errors.New("invalid phone number for the specified region")
	ErrEmailAlreadyExists = errors.New("email address is already in use")
)
