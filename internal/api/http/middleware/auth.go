package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	pasetotoken "github.com/Alijeyrad/medvault_backend/pkg/paseto"
	"github.com/Alijeyrad/medvault_backend/pkg/reqctx"
)

// SessionVerifier is satisfied by *redis.Sessions.
type SessionVerifier interface {
	Verify(ctx context.Context, sessionID, userID uuid.UUID) error
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthRequired accepts a Bearer PASETO access token. Tokens carrying a
// session id must also match a live session; tokens without one are bound
// only by their expiry. The claims go to fiber locals and the user context.
func AuthRequired(mgr *pasetotoken.Manager, sessions SessionVerifier) fiber.Handler {
	return func(c fiber.Ctx) error {
		token, found := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !found {
			return fiber.ErrUnauthorized
		}

		claims, err := mgr.Verify(token)
		if err != nil || claims.Type != pasetotoken.TokenTypeAccess {
			return fiber.ErrUnauthorized
		}

		if claims.SessionID != nil && sessions != nil {
			if err := sessions.Verify(c.Context(), *claims.SessionID, claims.UserID); err != nil {
				return fiber.ErrUnauthorized
			}
		}

		c.Locals(pasetotoken.CtxKeyClaims, claims)
		c.SetContext(reqctx.WithClaims(c.Context(), claims))
		return c.Next()
	}
}
