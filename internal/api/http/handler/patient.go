package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medvault_backend/internal/service/escrow"
	"github.com/Alijeyrad/medvault_backend/internal/service/record"
)

// PatientHandler serves the doctor's view of a patient who granted access.
type PatientHandler struct {
	records record.Service
	escrow  escrow.Service
}

func NewPatientHandler(records record.Service, esc escrow.Service) *PatientHandler {
	return &PatientHandler{records: records, escrow: esc}
}

func mapEscrowError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, escrow.ErrAuthorization):
		return forbidden(c)
	case errors.Is(err, escrow.ErrRecordNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, escrow.ErrMissingMetadata):
		return unprocessable(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// GET /patients/:patientID/records
func (h *PatientHandler) ListRecords(c fiber.Ctx) error {
	actor, valid := actorFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	patientID, valid := uuidParam(c, "patientID")
	if !valid {
		return badRequest(c, "invalid patient id")
	}

	recs, err := h.records.ListShared(c.Context(), actor.ID, patientID)
	if err != nil {
		return mapRecordError(c, err)
	}

	return ok(c, recs)
}

// GET /patients/:patientID/records/:recordID/key
func (h *PatientHandler) FetchKey(c fiber.Ctx) error {
	actor, valid := actorFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	patientID, valid := uuidParam(c, "patientID")
	if !valid {
		return badRequest(c, "invalid patient id")
	}
	recordID, valid := uuidParam(c, "recordID")
	if !valid {
		return badRequest(c, "invalid record id")
	}

	key, err := h.escrow.FetchKeyFor(c.Context(), actor.ID, patientID, recordID)
	if err != nil {
		return mapEscrowError(c, err)
	}

	return ok(c, key)
}
