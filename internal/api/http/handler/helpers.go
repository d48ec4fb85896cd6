package handler

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/medvault_backend/internal/repo"
	"github.com/Alijeyrad/medvault_backend/internal/service/record"
	pasetotoken "github.com/Alijeyrad/medvault_backend/pkg/paseto"
)

// actorFromFiber returns the caller as set by AuthRequired.
func actorFromFiber(c fiber.Ctx) (record.Actor, bool) {
	claims, ok := pasetotoken.ClaimsFromFiber(c)
	if !ok {
		return record.Actor{}, false
	}
	return record.Actor{ID: claims.UserID, Role: repo.Role(claims.Role)}, true
}

func uuidParam(c fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}
