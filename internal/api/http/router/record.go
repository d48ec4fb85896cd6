package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medvault_backend/internal/api/http/handler"
	"github.com/Alijeyrad/medvault_backend/pkg/authorize"
)

func (r *Router) registerRecordRoutes(
	api fiber.Router,
	h *handler.RecordHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	records := api.Group("/records", authRequired)
	records.Post("/", requirePerm(authorize.ResourceRecord, authorize.ActionCreate), h.Upload)
	records.Get("/", requirePerm(authorize.ResourceRecord, authorize.ActionList), h.List)

	rec := records.Group("/:id")
	rec.Get("/", requirePerm(authorize.ResourceRecord, authorize.ActionRead), h.Get)
	rec.Get("/download", requirePerm(authorize.ResourceRecord, authorize.ActionRead), h.Download)
	rec.Get("/key", requirePerm(authorize.ResourceRecordKey, authorize.ActionRead), h.Key)
	rec.Patch("/summary", requirePerm(authorize.ResourceRecord, authorize.ActionUpdate), h.AnnotateSummary)
	rec.Delete("/", requirePerm(authorize.ResourceRecord, authorize.ActionDelete), h.Delete)
}
