package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medvault_backend/internal/api/http/handler"
	"github.com/Alijeyrad/medvault_backend/pkg/authorize"
)

// Doctor routes into a patient who granted access.
func (r *Router) registerPatientRoutes(
	api fiber.Router,
	h *handler.PatientHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	p := api.Group("/patients/:patientID", authRequired)
	p.Get("/records", requirePerm(authorize.ResourceRecord, authorize.ActionList), h.ListRecords)
	p.Get("/records/:recordID/key", requirePerm(authorize.ResourceRecordKey, authorize.ActionRead), h.FetchKey)
}
