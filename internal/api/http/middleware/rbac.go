package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medvault_backend/pkg/authorize"
	pasetotoken "github.com/Alijeyrad/medvault_backend/pkg/paseto"
	"github.com/Alijeyrad/medvault_backend/pkg/reqctx"
)

// RequirePermission admits the request when one of the caller's roles in the
// sys domain is allowed action on resource. It must run after AuthRequired.
func RequirePermission(auth authorize.IAuthorization, resource authorize.Resource, action authorize.Action) fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, found := pasetotoken.ClaimsFromFiber(c)
		if !found {
			return fiber.ErrUnauthorized
		}

		err := auth.MustEnforce(c.Context(), authorize.GroupSubject(claims.UserID.String()), authorize.DomainSys, resource, action)
		switch {
		case err == nil:
			return c.Next()
		case errors.Is(err, authorize.ErrForbidden):
			return fiber.ErrForbidden
		default:
			attrs := append(reqctx.LogAttrs(c.Context()), "resource", resource, "action", action, "err", err)
			slog.ErrorContext(c.Context(), "authorization check failed", attrs...)
			return fiber.ErrInternalServerError
		}
	}
}
