package vaultclient

import (
	"errors"
	"fmt"
)

var (
	ErrNoBaseURL = errors.New("vaultclient: base url is required")

	// ErrNoMetadata is returned when a record has no iv or original name and
	// type, so it cannot be opened even with a key.
	ErrNoMetadata = errors.New("vaultclient: record has no encryption metadata")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("vaultclient: server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("vaultclient: server returned %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
