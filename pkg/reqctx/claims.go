package reqctx

import (
	"context"

	"github.com/google/uuid"
)

// AuthClaims is what the auth middleware learned from a verified token.
// *pasetotoken.Claims implements it.
type AuthClaims interface {
	GetUserID() uuid.UUID
	GetSessionID() *uuid.UUID
	GetTokenType() string
	// GetRole is "patient" or "doctor".
	GetRole() string
	IsExpired() bool
}

func WithClaims(ctx context.Context, claims AuthClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func ClaimsFromContext(ctx context.Context) (AuthClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(AuthClaims)
	return claims, ok && claims != nil
}

// IsAuthenticated reports whether unexpired claims are present.
func IsAuthenticated(ctx context.Context) bool {
	claims, ok := ClaimsFromContext(ctx)
	return ok && !claims.IsExpired()
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return claims.GetUserID(), true
}

func RoleFromContext(ctx context.Context) (string, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return "", false
	}
	return claims.GetRole(), true
}
