package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medvault_backend/internal/api/http/handler"
	"github.com/Alijeyrad/medvault_backend/pkg/authorize"
)

func (r *Router) registerUserRoutes(
	api fiber.Router,
	h *handler.UserHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	me := api.Group("/me", authRequired)
	me.Get("/", requirePerm(authorize.ResourceProfile, authorize.ActionRead), h.GetMe)
	me.Get("/share-code", requirePerm(authorize.ResourceShareCode, authorize.ActionRead), h.GetShareCode)
	me.Post("/share-code/rotate", requirePerm(authorize.ResourceShareCode, authorize.ActionUpdate), h.RotateShareCode)
}
