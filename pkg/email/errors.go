package email

import (
	"errors"
	"fmt"
)

// ErrDisabled is returned by Send when email.enabled is false. Callers treat
// it as a silent skip.
var ErrDisabled = errors.New("email: disabled")

// InvalidMessageError names the first problem found in a Message.
type InvalidMessageError struct{ Field, Problem string }

func (e *InvalidMessageError) Error() string {
	return fmt.Sprintf("email: %s %s", e.Field, e.Problem)
}

func invalidf(field, problem string) error {
	return &InvalidMessageError{Field: field, Problem: problem}
}
