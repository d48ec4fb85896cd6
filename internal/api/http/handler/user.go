package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medvault_backend/internal/service/user"
)

type UserHandler struct {
	svc user.Service
}

func NewUserHandler(svc user.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

func mapUserError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, user.ErrNotPatient):
		return forbidden(c)
	default:
		return internalError(c, err)
	}
}

// GET /api/v1/me
func (h *UserHandler) GetMe(c fiber.Ctx) error {
	actor, valid := actorFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	u, err := h.svc.Get(c.Context(), actor.ID)
	if err != nil {
		return mapUserError(c, err)
	}

	return ok(c, u)
}

// GET /api/v1/me/share-code
func (h *UserHandler) GetShareCode(c fiber.Ctx) error {
	actor, valid := actorFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	code, err := h.svc.ShareCode(c.Context(), actor.ID)
	if err != nil {
		return mapUserError(c, err)
	}

	return ok(c, fiber.Map{"share_code": code})
}

// POST /api/v1/me/share-code/rotate
func (h *UserHandler) RotateShareCode(c fiber.Ctx) error {
	actor, valid := actorFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	code, err := h.svc.RotateShareCode(c.Context(), actor.ID)
	if err != nil {
		return mapUserError(c, err)
	}

	return ok(c, fiber.Map{"share_code": code})
}
