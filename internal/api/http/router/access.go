package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medvault_backend/internal/api/http/handler"
	"github.com/Alijeyrad/medvault_backend/pkg/authorize"
)

func (r *Router) registerAccessRoutes(
	api fiber.Router,
	h *handler.AccessHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	reqs := api.Group("/access-requests", authRequired)
	reqs.Post("/", requirePerm(authorize.ResourceAccessRequest, authorize.ActionCreate), h.Create)
	reqs.Get("/", requirePerm(authorize.ResourceAccessRequest, authorize.ActionList), h.List)

	ar := reqs.Group("/:id")
	ar.Get("/", requirePerm(authorize.ResourceAccessRequest, authorize.ActionRead), h.Get)
	ar.Post("/grant", requirePerm(authorize.ResourceAccessRequest, authorize.ActionGrant), h.Grant)
	ar.Post("/deny", requirePerm(authorize.ResourceAccessRequest, authorize.ActionDeny), h.Deny)
	ar.Post("/revoke", requirePerm(authorize.ResourceAccessRequest, authorize.ActionRevoke), h.Revoke)
	ar.Post("/seen", requirePerm(authorize.ResourceAccessRequest, authorize.ActionUpdate), h.MarkSeen)
	ar.Get("/keys", requirePerm(authorize.ResourceRecordKey, authorize.ActionRead), h.Bundle)
}
