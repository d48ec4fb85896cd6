package authorize

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medvault_backend/pkg/reqctx"
)

var (
	ErrNoSubjectInContext = errors.New("no subject found in context")
)

// SubjectFromContext extracts the GroupSubject (user ID) from the claims
// stored by the auth middleware.
func SubjectFromContext(ctx context.Context) (GroupSubject, error) {
	id, err := UserIDFromContext(ctx)
	if err != nil {
		return "", err
	}
	return GroupSubject(id.String()), nil
}

// UserIDFromContext extracts the user ID as uuid.UUID from context.
func UserIDFromContext(ctx context.Context) (uuid.UUID, error) {
	id, ok := reqctx.UserIDFromContext(ctx)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrNoSubjectInContext
	}
	return id, nil
}
