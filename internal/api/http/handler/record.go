package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medvault_backend/internal/repo"
	"github.com/Alijeyrad/medvault_backend/internal/service/escrow"
	"github.com/Alijeyrad/medvault_backend/internal/service/record"
	"github.com/Alijeyrad/medvault_backend/pkg/crypto"
)

type RecordHandler struct {
	svc    record.Service
	escrow escrow.Service
}

func NewRecordHandler(svc record.Service, esc escrow.Service) *RecordHandler {
	return &RecordHandler{svc: svc, escrow: esc}
}

func mapRecordError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, record.ErrNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, record.ErrForbidden), errors.Is(err, escrow.ErrAuthorization):
		return forbidden(c)
	case errors.Is(err, record.ErrTooLarge):
		return tooLarge(c, err.Error())
	case errors.Is(err, record.ErrInvalidCategory),
		errors.Is(err, record.ErrIncompleteMetadata),
		errors.Is(err, record.ErrEmptyFile),
		errors.Is(err, crypto.ErrFormat),
		errors.Is(err, crypto.ErrInvalidKey),
		errors.Is(err, crypto.ErrInvalidIV):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// POST /records
// Multipart: file (ciphertext), category, iv (JSON int array), original_name,
// original_type and optional encryption_key (hex).
func (h *RecordHandler) Upload(c fiber.Ctx) error {
	actor, valid := actorFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file field is required")
	}

	req := record.UploadRequest{
		FileName:      fh.Filename,
		Size:          fh.Size,
		Category:      repo.Category(c.FormValue("category")),
		OriginalName:  c.FormValue("original_name"),
		OriginalType:  c.FormValue("original_type"),
		EncryptionKey: strings.TrimSpace(c.FormValue("encryption_key")),
	}
	if raw := c.FormValue("iv"); raw != "" {
		iv, err := crypto.ParseIV(raw)
		if err != nil {
			return badRequest(c, "iv must be a JSON array of 12 integers 0-255")
		}
		req.IV = iv
	}

	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "unreadable file")
	}
	defer f.Close()
	req.Body = f

	rec, err := h.svc.Upload(c.Context(), actor.ID, req)
	if err != nil {
		return mapRecordError(c, err)
	}

	return created(c, rec)
}

// GET /records
func (h *RecordHandler) List(c fiber.Ctx) error {
	actor, valid := actorFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	if actor.Role != repo.RolePatient {
		return forbidden(c)
	}

	recs, err := h.svc.List(c.Context(), actor.ID)
	if err != nil {
		return mapRecordError(c, err)
	}

	return ok(c, recs)
}

// GET /records/:id
func (h *RecordHandler) Get(c fiber.Ctx) error {
	actor, valid := actorFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid record id")
	}

	rec, err := h.svc.Get(c.Context(), actor, id)
	if err != nil {
		return mapRecordError(c, err)
	}

	return ok(c, rec)
}

// GET /records/:id/download
// Returns a presigned URL for the ciphertext.
func (h *RecordHandler) Download(c fiber.Ctx) error {
	actor, valid := actorFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid record id")
	}

	url, err := h.svc.DownloadURL(c.Context(), actor, id)
	if err != nil {
		return mapRecordError(c, err)
	}

	return ok(c, fiber.Map{"url": url})
}

// GET /records/:id/key
// The owner's way back to a key stored at upload time.
func (h *RecordHandler) Key(c fiber.Ctx) error {
	actor, valid := actorFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	if actor.Role != repo.RolePatient {
		return forbidden(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid record id")
	}

	key, err := h.escrow.OwnerKey(c.Context(), actor.ID, id)
	if err != nil {
		return mapEscrowError(c, err)
	}

	return ok(c, key)
}

// PATCH /records/:id/summary
func (h *RecordHandler) AnnotateSummary(c fiber.Ctx) error {
	actor, valid := actorFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid record id")
	}

	var body struct {
		Summary string `json:"summary"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	rec, err := h.svc.AnnotateSummary(c.Context(), actor.ID, id, body.Summary)
	if err != nil {
		return mapRecordError(c, err)
	}

	return ok(c, rec)
}

// DELETE /records/:id
func (h *RecordHandler) Delete(c fiber.Ctx) error {
	actor, valid := actorFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid record id")
	}

	if err := h.svc.Delete(c.Context(), actor.ID, id); err != nil {
		return mapRecordError(c, err)
	}

	return noContent(c)
}
