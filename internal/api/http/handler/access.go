package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/medvault_backend/internal/repo"
	"github.com/Alijeyrad/medvault_backend/internal/service/access"
	"github.com/Alijeyrad/medvault_backend/internal/service/escrow"
)

type AccessHandler struct {
	svc    access.Service
	escrow escrow.Service
}

func NewAccessHandler(svc access.Service, esc escrow.Service) *AccessHandler {
	return &AccessHandler{svc: svc, escrow: esc}
}

func mapAccessError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, access.ErrNotFound), errors.Is(err, access.ErrPatientNotFound),
		errors.Is(err, escrow.ErrRequestNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, access.ErrNotOwner), errors.Is(err, access.ErrNotDoctor),
		errors.Is(err, escrow.ErrAuthorization):
		return forbidden(c)
	case errors.Is(err, access.ErrAlreadyResolved),
		errors.Is(err, access.ErrInvalidTransition),
		errors.Is(err, access.ErrRequestExists):
		return conflict(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// POST /access-requests
func (h *AccessHandler) Create(c fiber.Ctx) error {
	actor, valid := actorFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	var body struct {
		ShareCode string `json:"share_code"`
	}
	if err := c.Bind().JSON(&body); err != nil || body.ShareCode == "" {
		return badRequest(c, "share_code is required")
	}

	ar, err := h.svc.Request(c.Context(), actor.ID, body.ShareCode)
	if err != nil {
		return mapAccessError(c, err)
	}

	return created(c, ar)
}

// GET /access-requests?role=patient|doctor
// role defaults to the caller's own and may not name another.
func (h *AccessHandler) List(c fiber.Ctx) error {
	actor, valid := actorFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	role := repo.Role(c.Query("role", string(actor.Role)))
	if !role.Valid() {
		return badRequest(c, "role must be patient or doctor")
	}
	if role != actor.Role {
		return forbidden(c)
	}

	var (
		list []*repo.AccessRequest
		err  error
	)
	if role == repo.RolePatient {
		list, err = h.svc.ListForPatient(c.Context(), actor.ID)
	} else {
		list, err = h.svc.ListForDoctor(c.Context(), actor.ID)
	}
	if err != nil {
		return mapAccessError(c, err)
	}

	return ok(c, list)
}

// GET /access-requests/:id
func (h *AccessHandler) Get(c fiber.Ctx) error {
	actor, valid := actorFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid request id")
	}

	ar, err := h.svc.Get(c.Context(), actor.ID, id)
	if err != nil {
		return mapAccessError(c, err)
	}

	return ok(c, ar)
}

// POST /access-requests/:id/grant
func (h *AccessHandler) Grant(c fiber.Ctx) error {
	return h.transition(c, h.svc.Grant)
}

// POST /access-requests/:id/deny
func (h *AccessHandler) Deny(c fiber.Ctx) error {
	return h.transition(c, h.svc.Deny)
}

// POST /access-requests/:id/revoke
func (h *AccessHandler) Revoke(c fiber.Ctx) error {
	return h.transition(c, h.svc.Revoke)
}

func (h *AccessHandler) transition(c fiber.Ctx, fn func(ctx context.Context, patientID, requestID uuid.UUID) (*repo.AccessRequest, error)) error {
	actor, valid := actorFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid request id")
	}

	ar, err := fn(c.Context(), actor.ID, id)
	if err != nil {
		return mapAccessError(c, err)
	}

	return ok(c, ar)
}

// POST /access-requests/:id/seen
func (h *AccessHandler) MarkSeen(c fiber.Ctx) error {
	actor, valid := actorFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid request id")
	}

	if err := h.svc.MarkSeen(c.Context(), actor.ID, id); err != nil {
		return mapAccessError(c, err)
	}

	return noContent(c)
}

// GET /access-requests/:id/keys
// The grant-time key bundle, doctor only.
func (h *AccessHandler) Bundle(c fiber.Ctx) error {
	actor, valid := actorFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid request id")
	}

	keys, err := h.escrow.Bundle(c.Context(), actor.ID, id)
	if err != nil {
		return mapAccessError(c, err)
	}

	return ok(c, keys)
}
